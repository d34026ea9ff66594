package factory

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/technova-cloud/ramp/core/kube/kconfig"
	"github.com/technova-cloud/ramp/rollout/pkg/meta"
	"github.com/technova-cloud/ramp/rollout/pkg/model"
	"github.com/technova-cloud/ramp/rollout/pkg/model/consts"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

type CandidateFactoryTestSuite struct {
	suite.Suite
	factory CandidateFactory
}

func (c *CandidateFactoryTestSuite) SetupTest() {
	c.factory = new(candidateFactory)
}

func (c *CandidateFactoryTestSuite) stableDeployment() *appsv1.Deployment {
	replicas := int32(4)
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Name:            "echo-server",
			Namespace:       "default",
			ResourceVersion: "100",
			Labels:          map[string]string{"app": "echo-server"},
			Annotations:     map[string]string{"team": "platform"},
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Selector: &metav1.LabelSelector{
				MatchLabels: map[string]string{"app": "echo-server"},
			},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: map[string]string{"app": "echo-server"},
				},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{
						{
							Name:  "echo",
							Image: "echo-server:v1",
							Ports: []corev1.ContainerPort{{ContainerPort: 8080}},
						},
					},
				},
			},
		},
		Status: appsv1.DeploymentStatus{
			ReadyReplicas: 4,
		},
	}
}

func (c *CandidateFactoryTestSuite) provisionSpec() *model.ProvisionCandidateSpec {
	return &model.ProvisionCandidateSpec{
		Opt:            kconfig.Opt{Namespace: "default"},
		WorkloadName:   "echo-server",
		CandidateImage: "echo-server:v2",
		Strategy:       model.StrategyCanary,
		CanaryWeight:   25,
		RolloutId:      "b7ffa5a6-23ab-4c2e-a3b2-2f0bd3a2a85f",
	}
}

func (c *CandidateFactoryTestSuite) TestFromDeployment() {
	// -- Given
	//
	stable := c.stableDeployment()
	spec := c.provisionSpec()

	// -- When
	//
	candidate := c.factory.FromDeployment(spec, stable, 1)

	// -- Then
	//
	c.Equal("echo-server-candidate", candidate.Name)
	c.Equal("default", candidate.Namespace)
	c.Equal(int32(1), *candidate.Spec.Replicas)
	c.Equal("echo-server:v2", candidate.Spec.Template.Spec.Containers[0].Image)
	c.Empty(candidate.ResourceVersion)
	c.Equal(appsv1.DeploymentStatus{}, candidate.Status)

	// the stable deployment is untouched
	c.Equal("echo-server:v1", stable.Spec.Template.Spec.Containers[0].Image)
	c.Equal(int32(4), *stable.Spec.Replicas)
}

func (c *CandidateFactoryTestSuite) TestFromDeploymentIsolatesSelector() {
	// -- Given
	//
	stable := c.stableDeployment()
	spec := c.provisionSpec()

	// -- When
	//
	candidate := c.factory.FromDeployment(spec, stable, 1)

	// -- Then
	//
	candidateLabels := GenCandidateLabels("echo-server")
	c.Equal(candidateLabels, candidate.Spec.Selector.MatchLabels)
	c.Equal(candidateLabels, candidate.Spec.Template.Labels)

	// the stable selector must never match candidate pods
	c.NotContains(candidate.Spec.Template.Labels, "app")
}

func (c *CandidateFactoryTestSuite) TestFromDeploymentStampsRolloutAnnotation() {
	// -- Given
	//
	stable := c.stableDeployment()
	spec := c.provisionSpec()

	// -- When
	//
	candidate := c.factory.FromDeployment(spec, stable, 1)

	// -- Then
	//
	c.Equal("platform", candidate.Annotations["team"])

	actual := new(meta.Rollout)
	if c.NoError(meta.FromMap(candidate.Annotations, actual)) {
		c.Equal(spec.RolloutId, actual.ID)
		c.Equal("echo-server", actual.WorkloadName)
		c.Equal(model.StrategyCanary, actual.Strategy)
		c.Equal(int32(25), actual.CanaryWeight)
		c.Equal("echo-server:v2", actual.CandidateImage)
	}
}

func (c *CandidateFactoryTestSuite) TestServiceFor() {
	// -- Given
	//
	candidate := c.factory.FromDeployment(c.provisionSpec(), c.stableDeployment(), 1)

	// -- When
	//
	svc := c.factory.ServiceFor(candidate)

	// -- Then
	//
	c.Equal("echo-server-candidate", svc.Name)
	c.Equal("default", svc.Namespace)
	c.Equal(corev1.ServiceTypeClusterIP, svc.Spec.Type)
	c.Equal(candidate.Spec.Template.Labels, svc.Spec.Selector)
	if c.Len(svc.Spec.Ports, 1) {
		c.Equal(int32(80), svc.Spec.Ports[0].Port)
		c.Equal(int32(8080), svc.Spec.Ports[0].TargetPort.IntVal)
	}
}

func (c *CandidateFactoryTestSuite) TestServiceForWithoutContainerPorts() {
	// -- Given
	//
	stable := c.stableDeployment()
	stable.Spec.Template.Spec.Containers[0].Ports = nil
	candidate := c.factory.FromDeployment(c.provisionSpec(), stable, 1)

	// -- When
	//
	svc := c.factory.ServiceFor(candidate)

	// -- Then
	//
	c.Equal(int32(80), svc.Spec.Ports[0].TargetPort.IntVal)
}

func (c *CandidateFactoryTestSuite) TestDeriveReplicaCount() {
	// -- Then
	//
	c.Equal(int32(1), DeriveReplicaCount(4, 25))
	c.Equal(int32(2), DeriveReplicaCount(4, 50))
	c.Equal(int32(1), DeriveReplicaCount(4, 10))
	c.Equal(int32(1), DeriveReplicaCount(1, 1))
	c.Equal(int32(10), DeriveReplicaCount(10, 100))
	c.Equal(int32(1), DeriveReplicaCount(0, 50))
}

func (c *CandidateFactoryTestSuite) TestWorkloadNameFromLabels() {
	// -- Given
	//
	candidateLabels := GenCandidateLabels("echo-server")

	// -- When
	//
	name, err := WorkloadNameFromLabels(candidateLabels)

	// -- Then
	//
	if c.NoError(err) {
		c.Equal("echo-server", name)
	}

	_, err = WorkloadNameFromLabels(map[string]string{"app": "echo-server"})
	c.Error(err)
}

func (c *CandidateFactoryTestSuite) TestGenCandidateLabels() {
	// -- When
	//
	candidateLabels := GenCandidateLabels("echo-server")

	// -- Then
	//
	c.Equal(consts.LabelValueResourceCandidate, candidateLabels[consts.LabelKeyResource])
	c.Equal("echo-server", candidateLabels[consts.LabelKeyCandidate])
}

func TestCandidateFactoryTestSuite(t *testing.T) {
	suite.Run(t, new(CandidateFactoryTestSuite))
}
