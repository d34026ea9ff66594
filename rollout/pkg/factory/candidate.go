package factory

import (
	"math"

	"github.com/technova-cloud/ramp/core/kube/kubeutil"
	"github.com/technova-cloud/ramp/rollout/pkg/meta"
	"github.com/technova-cloud/ramp/rollout/pkg/model"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/util/intstr"
)

const CandidateFactoryKey = "CandidateFactory"

const candidateServicePort = 80

type CandidateFactory interface {
	FromDeployment(spec *model.ProvisionCandidateSpec, deployment *appsv1.Deployment, numReplicas int32) *appsv1.Deployment
	ServiceFor(candidate *appsv1.Deployment) *corev1.Service
}

type candidateFactory struct {
}

func NewCandidateFactory() CandidateFactory {
	return &candidateFactory{}
}

func (c *candidateFactory) FromDeployment(spec *model.ProvisionCandidateSpec, deployment *appsv1.Deployment, numReplicas int32) *appsv1.Deployment {
	candidate := deployment.DeepCopy()
	candidateLabels := GenCandidateLabels(spec.WorkloadName)

	candidate.ObjectMeta = metav1.ObjectMeta{
		Name:      CandidateName(spec.WorkloadName),
		Namespace: deployment.Namespace,
		Labels:    labels.Merge(deployment.Labels, candidateLabels),
		Annotations: meta.Merge(deployment.Annotations, &meta.Rollout{
			ID:             spec.RolloutId,
			WorkloadName:   spec.WorkloadName,
			Strategy:       spec.Strategy,
			CanaryWeight:   spec.CanaryWeight,
			CandidateImage: spec.CandidateImage,
		}),
	}
	candidate.Spec.Replicas = &numReplicas
	candidate.Spec.Selector = &metav1.LabelSelector{MatchLabels: candidateLabels}
	candidate.Spec.Template.Labels = candidateLabels
	candidate.Status = appsv1.DeploymentStatus{}

	kubeutil.SetContainerImage(candidate, spec.ContainerName, spec.CandidateImage)

	return candidate
}

// ServiceFor builds the ClusterIP Service that routes to the candidate pods
// alone. It always listens on port 80, targeting the first container port of
// the candidate.
func (c *candidateFactory) ServiceFor(candidate *appsv1.Deployment) *corev1.Service {
	targetPort := int32(candidateServicePort)
	if cs := candidate.Spec.Template.Spec.Containers; len(cs) > 0 && len(cs[0].Ports) > 0 {
		targetPort = cs[0].Ports[0].ContainerPort
	}

	selector := map[string]string{}
	for k, v := range candidate.Spec.Template.Labels {
		selector[k] = v
	}

	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{
			Name:      candidate.Name,
			Namespace: candidate.Namespace,
			Labels:    selector,
		},
		Spec: corev1.ServiceSpec{
			Type:     corev1.ServiceTypeClusterIP,
			Selector: selector,
			Ports: []corev1.ServicePort{
				{
					Name:       "http",
					Port:       candidateServicePort,
					TargetPort: intstr.FromInt32(targetPort),
				},
			},
		},
	}
}

// DeriveReplicaCount sizes a canary candidate from the stable replica count
// and the share of traffic it will take. Never less than one replica.
func DeriveReplicaCount(stableReplicas int32, weight int32) int32 {
	reps := int32(math.Ceil(float64(stableReplicas) * float64(weight) / 100))
	if reps < 1 {
		reps = 1
	}
	return reps
}
