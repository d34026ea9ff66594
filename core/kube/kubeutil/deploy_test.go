package kubeutil

import (
	"testing"

	"github.com/stretchr/testify/suite"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

type DeployUtilTestSuite struct {
	suite.Suite
}

func (d *DeployUtilTestSuite) deployment(replicas int32) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:       "echo-server",
			Generation: 2,
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{
						{Name: "echo", Image: "echo-server:v1"},
						{Name: "sidecar", Image: "envoy:v1.18"},
					},
				},
			},
		},
		Status: appsv1.DeploymentStatus{
			ObservedGeneration: 2,
			Replicas:           replicas,
			UpdatedReplicas:    replicas,
			ReadyReplicas:      replicas,
		},
	}
}

func (d *DeployUtilTestSuite) TestDeploymentIsReady() {
	// -- Given
	//
	dep := d.deployment(3)

	// -- Then
	//
	d.True(DeploymentIsReady(dep))
}

func (d *DeployUtilTestSuite) TestDeploymentNotReadyWhileRollingOut() {
	// -- Given
	//
	dep := d.deployment(3)
	dep.Status.ReadyReplicas = 2

	// -- Then
	//
	d.False(DeploymentIsReady(dep))
}

func (d *DeployUtilTestSuite) TestDeploymentNotReadyOnStaleStatus() {
	// -- Given
	//
	dep := d.deployment(3)
	dep.Status.ObservedGeneration = 1

	// -- Then
	//
	d.False(DeploymentIsReady(dep))
}

func (d *DeployUtilTestSuite) TestDeploymentReadyDefaultsToOneReplica() {
	// -- Given
	//
	dep := d.deployment(1)
	dep.Spec.Replicas = nil

	// -- Then
	//
	d.True(DeploymentIsReady(dep))
}

func (d *DeployUtilTestSuite) TestRevision() {
	// -- Given
	//
	dep := d.deployment(1)
	dep.Annotations = map[string]string{RevisionAnnotationKey: "7"}

	// -- Then
	//
	d.Equal(int64(7), Revision(dep))
}

func (d *DeployUtilTestSuite) TestRevisionMissingOrGarbage() {
	// -- Given
	//
	dep := d.deployment(1)

	// -- Then
	//
	d.Equal(int64(0), Revision(dep))

	dep.Annotations = map[string]string{RevisionAnnotationKey: "not-a-number"}
	d.Equal(int64(0), Revision(dep))
}

func (d *DeployUtilTestSuite) TestReplicas() {
	// -- Given
	//
	dep := d.deployment(4)

	// -- Then
	//
	d.Equal(int32(4), Replicas(dep))

	dep.Spec.Replicas = nil
	d.Equal(int32(1), Replicas(dep))
}

func (d *DeployUtilTestSuite) TestContainerImage() {
	// -- Given
	//
	dep := d.deployment(1)

	// -- Then
	//
	d.Equal("echo-server:v1", ContainerImage(dep, ""))
	d.Equal("envoy:v1.18", ContainerImage(dep, "sidecar"))
	d.Equal("", ContainerImage(dep, "missing"))
}

func (d *DeployUtilTestSuite) TestSetContainerImage() {
	// -- Given
	//
	dep := d.deployment(1)

	// -- When
	//
	ok := SetContainerImage(dep, "echo", "echo-server:v2")

	// -- Then
	//
	d.True(ok)
	d.Equal("echo-server:v2", dep.Spec.Template.Spec.Containers[0].Image)
	d.Equal("envoy:v1.18", dep.Spec.Template.Spec.Containers[1].Image)
}

func (d *DeployUtilTestSuite) TestSetContainerImageFirstWhenUnnamed() {
	// -- Given
	//
	dep := d.deployment(1)

	// -- When
	//
	ok := SetContainerImage(dep, "", "echo-server:v2")

	// -- Then
	//
	d.True(ok)
	d.Equal("echo-server:v2", dep.Spec.Template.Spec.Containers[0].Image)
}

func (d *DeployUtilTestSuite) TestSetContainerImageUnknownContainer() {
	// -- Given
	//
	dep := d.deployment(1)

	// -- When
	//
	ok := SetContainerImage(dep, "missing", "echo-server:v2")

	// -- Then
	//
	d.False(ok)
	d.Equal("echo-server:v1", dep.Spec.Template.Spec.Containers[0].Image)
}

func (d *DeployUtilTestSuite) TestMatchedServices() {
	// -- Given
	//
	podLabels := map[string]string{"app": "echo-server", "tier": "web"}
	svcs := []corev1.Service{
		{
			ObjectMeta: metav1.ObjectMeta{Name: "echo-server"},
			Spec:       corev1.ServiceSpec{Selector: map[string]string{"app": "echo-server"}},
		},
		{
			ObjectMeta: metav1.ObjectMeta{Name: "other"},
			Spec:       corev1.ServiceSpec{Selector: map[string]string{"app": "other"}},
		},
		{
			ObjectMeta: metav1.ObjectMeta{Name: "headless"},
			Spec:       corev1.ServiceSpec{},
		},
	}

	// -- When
	//
	matched := MatchedServices(podLabels, svcs)

	// -- Then
	//
	if d.Len(matched, 1) {
		d.Equal("echo-server", matched[0].Name)
	}
}

func TestDeployUtilTestSuite(t *testing.T) {
	suite.Run(t, new(DeployUtilTestSuite))
}
