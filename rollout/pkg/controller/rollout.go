package controller

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/technova-cloud/ramp/core/kube/kconfig"
	"github.com/technova-cloud/ramp/rollout/pkg/exchange"
	"github.com/technova-cloud/ramp/rollout/pkg/model"
	"github.com/technova-cloud/ramp/rollout/pkg/service"
)

const RolloutControllerKey = "RolloutController"

type RolloutController interface {
	Controller
	Create(ctx echo.Context) error
	Get(ctx echo.Context) error
	Abort(ctx echo.Context) error
}

type rolloutController struct {
	RolloutService service.RolloutService `inject:"RolloutService"`
}

func (r *rolloutController) Create(ctx echo.Context) error {
	req := new(exchange.CreateRolloutRequest)
	if err := ctx.Bind(req); err != nil {
		return err
	}

	if err := req.Validate(); err != nil {
		return err
	}

	state, err := r.RolloutService.Start(&model.RolloutSpec{
		Opt:             kconfig.Opt{Namespace: req.Namespace},
		WorkloadName:    req.WorkloadName,
		CandidateImage:  req.CandidateImage,
		ContainerName:   req.ContainerName,
		Strategy:        req.Strategy,
		CanaryWeight:    req.CanaryWeight,
		ObserveDuration: time.Duration(req.DurationSeconds) * time.Second,
		Interval:        time.Duration(req.IntervalSeconds) * time.Second,
		Threshold:       req.Threshold,
		MinSamples:      req.MinSamples,
		ProbeURL:        req.ProbeURL,
	})
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusCreated, exchange.RolloutResponse{Data: state})
}

func (r *rolloutController) Get(ctx echo.Context) error {
	req := new(exchange.GetRolloutRequest)
	if err := ctx.Bind(req); err != nil {
		return err
	}

	state, err := r.RolloutService.Fetch(req.WorkloadName, kconfig.Opt{Namespace: req.Namespace})
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, exchange.RolloutResponse{Data: state})
}

func (r *rolloutController) Abort(ctx echo.Context) error {
	req := new(exchange.AbortRolloutRequest)
	if err := ctx.Bind(req); err != nil {
		return err
	}

	if err := r.RolloutService.Abort(&model.AbortRolloutSpec{
		Opt:          kconfig.Opt{Namespace: req.Namespace},
		WorkloadName: req.WorkloadName,
	}); err != nil {
		return err
	}

	return ctx.NoContent(http.StatusAccepted)
}

func (r *rolloutController) Routes() []Route {
	return []Route{
		{
			Path:    "/:namespace",
			Method:  http.MethodPost,
			Handler: r.Create,
		},
		{
			Path:    "/:namespace/:workload",
			Method:  http.MethodGet,
			Handler: r.Get,
		},
		{
			Path:    "/:namespace/:workload",
			Method:  http.MethodDelete,
			Handler: r.Abort,
		},
	}
}

func (r *rolloutController) Group() string {
	return "rollout"
}
