package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/technova-cloud/ramp/core/kube/kconfig"
	"github.com/technova-cloud/ramp/rollout/pkg/exchange"
	"github.com/technova-cloud/ramp/rollout/pkg/service"
)

const SnapshotControllerKey = "SnapshotController"

type SnapshotController interface {
	Controller
	List(ctx echo.Context) error
	Prune(ctx echo.Context) error
}

type snapshotController struct {
	BackupService service.BackupService `inject:"BackupService"`
}

func (s *snapshotController) List(ctx echo.Context) error {
	req := new(exchange.ListSnapshotsRequest)
	if err := ctx.Bind(req); err != nil {
		return err
	}

	snaps, err := s.BackupService.List(ctx.Request().Context(), req.WorkloadName, kconfig.Opt{Namespace: req.Namespace})
	if err != nil {
		return err
	}

	res := exchange.SnapshotListResponse{Data: make([]exchange.Snapshot, len(snaps))}
	for i, snap := range snaps {
		res.Data[i] = exchange.Snapshot{
			Name:         snap.Name(),
			WorkloadName: snap.WorkloadName,
			Taken:        snap.Taken,
		}
	}

	return ctx.JSON(http.StatusOK, res)
}

func (s *snapshotController) Prune(ctx echo.Context) error {
	req := new(exchange.PruneSnapshotsRequest)
	if err := ctx.Bind(req); err != nil {
		return err
	}

	pruned, err := s.BackupService.Prune(ctx.Request().Context(), req.WorkloadName, kconfig.Opt{Namespace: req.Namespace})
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, exchange.PruneSnapshotsResponse{Pruned: pruned})
}

func (s *snapshotController) Routes() []Route {
	return []Route{
		{
			Path:    "/:namespace/:workload",
			Method:  http.MethodGet,
			Handler: s.List,
		},
		{
			Path:    "/:namespace/:workload",
			Method:  http.MethodDelete,
			Handler: s.Prune,
		},
	}
}

func (s *snapshotController) Group() string {
	return "snapshots"
}
