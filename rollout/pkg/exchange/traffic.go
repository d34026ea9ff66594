package exchange

import (
	"github.com/technova-cloud/ramp/rollout/pkg/model"
)

type GetTrafficRequest struct {
	Namespace    string `param:"namespace"`
	WorkloadName string `param:"workload"`
}

type ResetTrafficRequest struct {
	Namespace    string `param:"namespace"`
	WorkloadName string `param:"workload"`
}

type TrafficResponse struct {
	Data *model.TrafficSplit `json:"data"`
}
