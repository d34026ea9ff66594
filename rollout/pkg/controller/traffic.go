package controller

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/technova-cloud/ramp/core/kube/kconfig"
	"github.com/technova-cloud/ramp/rollout/pkg/exchange"
	"github.com/technova-cloud/ramp/rollout/pkg/model"
	"github.com/technova-cloud/ramp/rollout/pkg/service"
)

const TrafficControllerKey = "TrafficController"

type TrafficController interface {
	Controller
	Get(ctx echo.Context) error
	Reset(ctx echo.Context) error
}

type trafficController struct {
	TrafficService service.TrafficService `inject:"TrafficService"`
}

func (t *trafficController) Get(ctx echo.Context) error {
	req := new(exchange.GetTrafficRequest)
	if err := ctx.Bind(req); err != nil {
		return err
	}

	split, err := t.TrafficService.CurrentSplit(ctx.Request().Context(), req.WorkloadName, kconfig.Opt{Namespace: req.Namespace})
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, exchange.TrafficResponse{Data: split})
}

func (t *trafficController) Reset(ctx echo.Context) error {
	req := new(exchange.ResetTrafficRequest)
	if err := ctx.Bind(req); err != nil {
		return err
	}

	if err := t.TrafficService.FinalizeSplit(ctx.Request().Context(), &model.FinalizeSplitSpec{
		Opt:          kconfig.Opt{Namespace: req.Namespace},
		WorkloadName: req.WorkloadName,
		Promote:      false,
	}); err != nil {
		return err
	}

	return ctx.NoContent(http.StatusOK)
}

func (t *trafficController) Routes() []Route {
	return []Route{
		{
			Path:    "/:namespace/:workload",
			Method:  http.MethodGet,
			Handler: t.Get,
		},
		{
			Path:    "/:namespace/:workload",
			Method:  http.MethodDelete,
			Handler: t.Reset,
		},
	}
}

func (t *trafficController) Group() string {
	return "traffic"
}
