package model

import (
	"github.com/technova-cloud/ramp/core/kube/kconfig"
)

type BeginSplitSpec struct {
	Opt          kconfig.Opt
	WorkloadName string
	Strategy     Strategy
	Weight       int32
}

type FinalizeSplitSpec struct {
	Opt          kconfig.Opt
	WorkloadName string
	Promote      bool
}

// TrafficSplit reports the weights currently in effect for a workload.
// Weights always sum to 100.
type TrafficSplit struct {
	WorkloadName    string `json:"workload_name"`
	StableWeight    int32  `json:"stable_weight"`
	CandidateWeight int32  `json:"candidate_weight"`
	IngressName     string `json:"ingress_name,omitempty"`
	Active          bool   `json:"active"`
}
