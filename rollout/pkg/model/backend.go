package model

import (
	"time"

	"github.com/technova-cloud/ramp/core/kube/kconfig"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
)

type ProvisionCandidateSpec struct {
	Opt            kconfig.Opt
	WorkloadName   string
	CandidateImage string
	ContainerName  string
	Strategy       Strategy
	CanaryWeight   int32
	RolloutId      string
}

type PromoteSpec struct {
	Opt            kconfig.Opt
	WorkloadName   string
	CandidateImage string
	ContainerName  string
}

type TeardownCandidateSpec struct {
	Opt          kconfig.Opt
	WorkloadName string
}

// Candidate is the provisioned preview copy of a workload: its Deployment and
// the Service that routes to it alone.
type Candidate struct {
	Deploy  *appsv1.Deployment
	Service *corev1.Service
}

type Revision struct {
	Number   int64     `json:"number"`
	Image    string    `json:"image"`
	Replicas int32     `json:"replicas"`
	Created  time.Time `json:"created"`
	Current  bool      `json:"current"`
}
