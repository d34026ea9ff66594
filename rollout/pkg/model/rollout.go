package model

import (
	"time"

	"github.com/technova-cloud/ramp/core/kube/kconfig"
)

type Strategy string

const (
	StrategyCanary    Strategy = "canary"
	StrategyBlueGreen Strategy = "blue-green"
)

func (s Strategy) Valid() bool {
	return s == StrategyCanary || s == StrategyBlueGreen
}

type Phase string

const (
	PhaseInit                  Phase = "Init"
	PhaseSnapshotting          Phase = "Snapshotting"
	PhaseCandidateProvisioning Phase = "CandidateProvisioning"
	PhaseTrafficShifting       Phase = "TrafficShifting"
	PhaseMonitoring            Phase = "Monitoring"
	PhasePromoting             Phase = "Promoting"
	PhaseRollingBack           Phase = "RollingBack"
	PhaseSucceeded             Phase = "Succeeded"
	PhaseFailed                Phase = "Failed"
)

var phaseTransitions = map[Phase][]Phase{
	PhaseInit:                  {PhaseSnapshotting},
	PhaseSnapshotting:          {PhaseCandidateProvisioning, PhaseFailed},
	PhaseCandidateProvisioning: {PhaseTrafficShifting, PhaseRollingBack},
	PhaseTrafficShifting:       {PhaseMonitoring, PhaseRollingBack},
	PhaseMonitoring:            {PhasePromoting, PhaseRollingBack},
	PhasePromoting:             {PhaseSucceeded, PhaseRollingBack},
	PhaseRollingBack:           {PhaseFailed},
	PhaseSucceeded:             {},
	PhaseFailed:                {},
}

func (p Phase) CanTransition(to Phase) bool {
	for _, t := range phaseTransitions[p] {
		if t == to {
			return true
		}
	}
	return false
}

func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

// Outcome qualifies a terminal phase: Succeeded is always promoted, Failed is
// either rolled_back (stable restored) or failed (nothing to undo, or restore
// itself failed).
type Outcome string

const (
	OutcomePromoted   Outcome = "promoted"
	OutcomeRolledBack Outcome = "rolled_back"
	OutcomeFailed     Outcome = "failed"
)

type RolloutSpec struct {
	Opt             kconfig.Opt
	WorkloadName    string
	CandidateImage  string
	ContainerName   string
	Strategy        Strategy
	CanaryWeight    int32
	ObserveDuration time.Duration
	Interval        time.Duration
	Threshold       float64
	MinSamples      int
	// ProbeURL overrides the in-cluster candidate service URL, e.g. for runs
	// driven through a port-forward.
	ProbeURL string
}

type AbortRolloutSpec struct {
	Opt          kconfig.Opt
	WorkloadName string
}

type RolloutState struct {
	ID                 string       `json:"id"`
	WorkloadName       string       `json:"workload_name"`
	Namespace          string       `json:"namespace"`
	Strategy           Strategy     `json:"strategy"`
	CandidateImage     string       `json:"candidate_image"`
	CanaryWeight       int32        `json:"canary_weight"`
	Phase              Phase        `json:"phase"`
	Outcome            Outcome      `json:"outcome,omitempty"`
	ManualIntervention bool         `json:"manual_intervention,omitempty"`
	FailureReason      string       `json:"failure_reason,omitempty"`
	Window             SampleWindow `json:"window"`
	NewRevision        int64        `json:"new_revision,omitempty"`
	StartTime          time.Time    `json:"start_time"`
	EndTime            *time.Time   `json:"end_time,omitempty"`
}

type HealthSample struct {
	Time    time.Time     `json:"time"`
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// SampleWindow accumulates every sample taken over a rollout's observation
// window. Samples are never evicted.
type SampleWindow struct {
	Total   int `json:"total"`
	Healthy int `json:"healthy"`
}

func (w *SampleWindow) Observe(s HealthSample) {
	w.Total++
	if s.Healthy {
		w.Healthy++
	}
}

// SuccessRate is the percentage of healthy samples. A window with no samples
// has a rate of 0.
func (w SampleWindow) SuccessRate() float64 {
	if w.Total == 0 {
		return 0
	}
	return float64(w.Healthy) / float64(w.Total) * 100
}
