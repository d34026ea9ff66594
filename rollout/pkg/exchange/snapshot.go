package exchange

import (
	"time"
)

type ListSnapshotsRequest struct {
	Namespace    string `param:"namespace"`
	WorkloadName string `param:"workload"`
}

type PruneSnapshotsRequest struct {
	Namespace    string `param:"namespace"`
	WorkloadName string `param:"workload"`
}

type Snapshot struct {
	Name         string    `json:"name"`
	WorkloadName string    `json:"workload_name"`
	Taken        time.Time `json:"taken"`
}

type SnapshotListResponse struct {
	Data []Snapshot `json:"data"`
}

type PruneSnapshotsResponse struct {
	Pruned int `json:"pruned"`
}
