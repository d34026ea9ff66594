package factory

import (
	"strconv"

	"github.com/technova-cloud/ramp/rollout/pkg/model/consts"
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
)

const IngressFactoryKey = "IngressFactory"

type IngressFactory interface {
	CanaryFromStable(stable *networkingv1.Ingress, workloadName, candidateService string, weight int32) *networkingv1.Ingress
}

type ingressFactory struct {
}

func NewIngressFactory() IngressFactory {
	return &ingressFactory{}
}

// CanaryFromStable mirrors the stable ingress rules onto the candidate
// Service and marks the copy as an nginx canary so the ingress controller
// splits traffic by weight between the two.
func (f *ingressFactory) CanaryFromStable(stable *networkingv1.Ingress, workloadName, candidateService string, weight int32) *networkingv1.Ingress {
	canary := stable.DeepCopy()

	canary.ObjectMeta = metav1.ObjectMeta{
		Name:      CanaryIngressName(stable.Name),
		Namespace: stable.Namespace,
		Labels:    labels.Merge(stable.Labels, GenCandidateLabels(workloadName)),
		Annotations: map[string]string{
			consts.AnnotationNginxCanary:       "true",
			consts.AnnotationNginxCanaryWeight: strconv.Itoa(int(weight)),
		},
	}
	for k, v := range stable.Annotations {
		if _, ok := canary.Annotations[k]; !ok {
			canary.Annotations[k] = v
		}
	}
	canary.Status = networkingv1.IngressStatus{}

	candidateBackend := networkingv1.IngressServiceBackend{
		Name: candidateService,
		Port: networkingv1.ServiceBackendPort{Number: candidateServicePort},
	}

	if canary.Spec.DefaultBackend != nil && canary.Spec.DefaultBackend.Service != nil {
		canary.Spec.DefaultBackend.Service = &candidateBackend
	}
	for i := range canary.Spec.Rules {
		rule := canary.Spec.Rules[i]
		if rule.HTTP == nil {
			continue
		}
		for j := range rule.HTTP.Paths {
			if rule.HTTP.Paths[j].Backend.Service != nil {
				rule.HTTP.Paths[j].Backend.Service = &candidateBackend
			}
		}
	}

	return canary
}
