package consts

const (
	Domain                      = "ramp.technova.cloud"
	LabelValueResourceSnapshot  = "snapshot"
	LabelValueResourceCandidate = "candidate"
)

const (
	LabelKeyResource  = Domain + "/resource"
	LabelKeyWorkload  = Domain + "/workload"
	LabelKeyCandidate = Domain + "/candidate"
	LabelKeyRollout   = Domain + "/rollout"
)

const (
	AnnotationKeyRollout  = Domain + "/rollout"
	AnnotationKeySnapshot = Domain + "/snapshot"
)

// ingress-nginx canary annotations. The canary ingress mirrors the stable
// ingress rules and nginx splits by weight between the two.
const (
	AnnotationNginxCanary       = "nginx.ingress.kubernetes.io/canary"
	AnnotationNginxCanaryWeight = "nginx.ingress.kubernetes.io/canary-weight"
)
