package kubeutil

import (
	networkingv1 "k8s.io/api/networking/v1"
)

// IngressReferencesService reports whether any backend of the ingress points
// at the named service.
func IngressReferencesService(ing *networkingv1.Ingress, serviceName string) bool {
	if db := ing.Spec.DefaultBackend; db != nil && db.Service != nil && db.Service.Name == serviceName {
		return true
	}
	for _, rule := range ing.Spec.Rules {
		if rule.HTTP == nil {
			continue
		}
		for _, p := range rule.HTTP.Paths {
			if p.Backend.Service != nil && p.Backend.Service.Name == serviceName {
				return true
			}
		}
	}
	return false
}
