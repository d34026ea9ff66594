package exchange

import (
	"github.com/technova-cloud/ramp/core/except"
	"github.com/technova-cloud/ramp/rollout/pkg/model"
)

type CreateRolloutRequest struct {
	Namespace       string         `param:"namespace"`
	WorkloadName    string         `json:"workload_name"`
	CandidateImage  string         `json:"candidate_image"`
	ContainerName   string         `json:"container_name"`
	Strategy        model.Strategy `json:"strategy"`
	CanaryWeight    int32          `json:"canary_weight"`
	DurationSeconds int            `json:"duration_seconds"`
	IntervalSeconds int            `json:"interval_seconds"`
	Threshold       float64        `json:"threshold"`
	MinSamples      int            `json:"min_samples"`
	ProbeURL        string         `json:"probe_url"`
}

func (c *CreateRolloutRequest) Validate() error {
	if c.Namespace == "" {
		return except.NewError("Namespace field is required.", except.ErrInvalid)
	}
	if c.WorkloadName == "" {
		return except.NewError("Workload name field is required.", except.ErrInvalid)
	}
	if c.CandidateImage == "" {
		return except.NewError("Candidate image field is required.", except.ErrInvalid)
	}
	if c.Strategy != "" && !c.Strategy.Valid() {
		return except.NewError("%s is not a valid strategy. Valid strategies are %s and %s.",
			except.ErrInvalid, c.Strategy, model.StrategyCanary, model.StrategyBlueGreen)
	}
	if c.CanaryWeight < 0 || c.CanaryWeight > 100 {
		return except.NewError("Canary weight must be between 0 and 100.", except.ErrInvalid)
	}
	if c.Threshold < 0 || c.Threshold > 100 {
		return except.NewError("Threshold must be between 0 and 100.", except.ErrInvalid)
	}
	if c.DurationSeconds < 0 || c.IntervalSeconds < 0 || c.MinSamples < 0 {
		return except.NewError("Durations and sample counts cannot be negative.", except.ErrInvalid)
	}
	return nil
}

type GetRolloutRequest struct {
	Namespace    string `param:"namespace"`
	WorkloadName string `param:"workload"`
}

type AbortRolloutRequest struct {
	Namespace    string `param:"namespace"`
	WorkloadName string `param:"workload"`
}

type RolloutResponse struct {
	Data *model.RolloutState `json:"data"`
}
