package store

import (
	"context"
	"fmt"
	"time"

	"github.com/technova-cloud/ramp/core/kube/kconfig"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
)

// Snapshot is the pre-rollout state of a workload: the stable Deployment plus
// the Service and Ingress fronting it, captured verbatim so a rollback can
// reapply them unchanged.
type Snapshot struct {
	WorkloadName string                `json:"workload_name"`
	Namespace    string                `json:"namespace"`
	Taken        time.Time             `json:"taken"`
	Deploy       *appsv1.Deployment    `json:"deploy"`
	Service      *corev1.Service       `json:"service,omitempty"`
	Ingress      *networkingv1.Ingress `json:"ingress,omitempty"`
}

func (s *Snapshot) Name() string {
	return fmt.Sprintf("%s-%d", s.WorkloadName, s.Taken.Unix())
}

type SnapshotStore interface {
	Save(ctx context.Context, snapshot *Snapshot) error
	Latest(ctx context.Context, workloadName string, opt kconfig.Opt) (*Snapshot, error)
	FetchAll(ctx context.Context, workloadName string, opt kconfig.Opt) ([]Snapshot, error)
	Delete(ctx context.Context, name string, opt kconfig.Opt) error
	// Prune deletes all but the newest keep snapshots for the workload and
	// returns how many were removed.
	Prune(ctx context.Context, workloadName string, keep int, opt kconfig.Opt) (int, error)
}
