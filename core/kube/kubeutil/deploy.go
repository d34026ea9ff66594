package kubeutil

import (
	"strconv"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
)

// RevisionAnnotationKey is maintained by the deployment controller on both the
// Deployment and its ReplicaSets.
const RevisionAnnotationKey = "deployment.kubernetes.io/revision"

func DeploymentIsReady(dep *appsv1.Deployment) bool {
	if dep.Generation > dep.Status.ObservedGeneration {
		return false
	}
	replicas := int32(1)
	if dep.Spec.Replicas != nil {
		replicas = *dep.Spec.Replicas
	}
	return dep.Status.UpdatedReplicas == replicas && dep.Status.ReadyReplicas == replicas
}

func Revision(obj metav1.Object) int64 {
	v, ok := obj.GetAnnotations()[RevisionAnnotationKey]
	if !ok {
		return 0
	}
	rev, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return rev
}

func Replicas(dep *appsv1.Deployment) int32 {
	if dep.Spec.Replicas == nil {
		return 1
	}
	return *dep.Spec.Replicas
}

// ContainerImage returns the image of the named container, or of the first
// container when name is empty.
func ContainerImage(dep *appsv1.Deployment, name string) string {
	for i, c := range dep.Spec.Template.Spec.Containers {
		if name == "" && i == 0 {
			return c.Image
		}
		if c.Name == name {
			return c.Image
		}
	}
	return ""
}

func SetContainerImage(dep *appsv1.Deployment, name, image string) bool {
	for i := range dep.Spec.Template.Spec.Containers {
		c := &dep.Spec.Template.Spec.Containers[i]
		if name == "" || c.Name == name {
			c.Image = image
			return true
		}
	}
	return false
}

func MatchedServices(l map[string]string, svcs []corev1.Service) []corev1.Service {
	var services []corev1.Service
	for i := range svcs {
		service := svcs[i]
		if service.Spec.Selector == nil {
			// services with nil selectors match nothing, not everything.
			continue
		}
		selector := labels.Set(service.Spec.Selector).AsSelectorPreValidated()
		if selector.Matches(labels.Set(l)) {
			services = append(services, service)
		}
	}
	return services
}
