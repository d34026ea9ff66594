package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/technova-cloud/ramp/core/except"
	"github.com/technova-cloud/ramp/core/kube/kconfig"
	"github.com/technova-cloud/ramp/rollout/pkg/config"
	"github.com/technova-cloud/ramp/rollout/pkg/metrics"
	"github.com/technova-cloud/ramp/rollout/pkg/model"
	"github.com/technova-cloud/ramp/synchelpers"
	log "github.com/sirupsen/logrus"
)

const RolloutServiceKey = "RolloutService"

type RolloutService interface {
	// Start launches a rollout and returns immediately with its initial
	// state. A rollout already active for the same workload is rejected with
	// a conflict before anything touches the cluster.
	Start(spec *model.RolloutSpec) (*model.RolloutState, error)
	// Run drives a rollout to its terminal phase. Canceling ctx aborts it.
	Run(ctx context.Context, spec *model.RolloutSpec) (*model.RolloutState, error)
	Fetch(workloadName string, opt kconfig.Opt) (*model.RolloutState, error)
	Abort(spec *model.AbortRolloutSpec) error
}

type rolloutService struct {
	Backend DeployBackendService `inject:"DeployBackendService"`
	Traffic TrafficService       `inject:"TrafficService"`
	Health  HealthMonitorService `inject:"HealthMonitorService"`
	Backup  BackupService        `inject:"BackupService"`
	Config  *config.Config       `inject:"Config"`

	Locks   synchelpers.LockMap
	Cancels synchelpers.CancelFuncMap

	runs     map[string]*rolloutRun
	runsLock sync.RWMutex
}

func (r *rolloutService) Start(spec *model.RolloutSpec) (*model.RolloutState, error) {
	run, key, err := r.begin(spec)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.Cancels.Set(key, cancel)

	go func() {
		defer func() {
			r.Cancels.Remove(key)
			r.Locks.Release(key)
			cancel()
		}()
		r.execute(ctx, run, spec)
	}()

	return run.snapshot(), nil
}

func (r *rolloutService) Run(ctx context.Context, spec *model.RolloutSpec) (*model.RolloutState, error) {
	run, key, err := r.begin(spec)
	if err != nil {
		return nil, err
	}

	rctx, cancel := context.WithCancel(ctx)
	r.Cancels.Set(key, cancel)
	defer func() {
		r.Cancels.Remove(key)
		r.Locks.Release(key)
		cancel()
	}()

	r.execute(rctx, run, spec)

	return run.snapshot(), nil
}

func (r *rolloutService) Fetch(workloadName string, opt kconfig.Opt) (*model.RolloutState, error) {
	r.runsLock.RLock()
	run, ok := r.runs[rolloutKey(opt.Namespace, workloadName)]
	r.runsLock.RUnlock()

	if !ok {
		return nil, except.NewError("no rollout recorded for workload %s in namespace %s",
			except.ErrNotFound, workloadName, opt.Namespace)
	}
	return run.snapshot(), nil
}

func (r *rolloutService) Abort(spec *model.AbortRolloutSpec) error {
	key := rolloutKey(spec.Opt.Namespace, spec.WorkloadName)
	if !r.Locks.Held(key) {
		return except.NewError("no active rollout for workload %s in namespace %s",
			except.ErrNotFound, spec.WorkloadName, spec.Opt.Namespace)
	}

	log.WithField("workload", spec.WorkloadName).
		WithField("namespace", spec.Opt.Namespace).
		Warn("Aborting rollout")

	r.Cancels.Cancel(key)
	return nil
}

func (r *rolloutService) begin(spec *model.RolloutSpec) (*rolloutRun, string, error) {
	r.applyDefaults(spec)
	if err := r.validate(spec); err != nil {
		return nil, "", err
	}

	key := rolloutKey(spec.Opt.Namespace, spec.WorkloadName)
	if !r.Locks.TryAcquire(key) {
		return nil, "", except.NewError("a rollout is already active for workload %s in namespace %s",
			except.ErrConflict, spec.WorkloadName, spec.Opt.Namespace)
	}

	run := &rolloutRun{
		state: model.RolloutState{
			ID:             uuid.New().String(),
			WorkloadName:   spec.WorkloadName,
			Namespace:      spec.Opt.Namespace,
			Strategy:       spec.Strategy,
			CandidateImage: spec.CandidateImage,
			CanaryWeight:   spec.CanaryWeight,
			Phase:          model.PhaseInit,
			StartTime:      time.Now().UTC(),
		},
	}

	r.runsLock.Lock()
	r.runs[key] = run
	r.runsLock.Unlock()

	return run, key, nil
}

func (r *rolloutService) applyDefaults(spec *model.RolloutSpec) {
	conf := r.Config.Rollout
	if spec.Opt.Namespace == "" {
		spec.Opt.Namespace = r.Config.Kube.Namespace
	}
	if spec.Strategy == "" {
		spec.Strategy = model.StrategyCanary
	}
	if spec.CanaryWeight == 0 {
		spec.CanaryWeight = conf.DefaultWeight
	}
	if spec.ObserveDuration == 0 {
		spec.ObserveDuration = conf.DefaultDuration
	}
	if spec.Interval == 0 {
		spec.Interval = conf.DefaultInterval
	}
	if spec.Threshold == 0 {
		spec.Threshold = conf.DefaultThreshold
	}
	if spec.MinSamples == 0 {
		spec.MinSamples = conf.MinSamples
	}
}

func (r *rolloutService) validate(spec *model.RolloutSpec) error {
	if spec.WorkloadName == "" {
		return except.NewError("a workload name is required", except.ErrInvalid)
	}
	if spec.CandidateImage == "" {
		return except.NewError("a candidate image is required", except.ErrInvalid)
	}
	if !spec.Strategy.Valid() {
		return except.NewError("%s is not a valid strategy", except.ErrInvalid, spec.Strategy)
	}
	if spec.CanaryWeight < 1 || spec.CanaryWeight > 100 {
		return except.NewError("canary weight must be between 1 and 100", except.ErrInvalid)
	}
	if spec.Threshold < 0 || spec.Threshold > 100 {
		return except.NewError("threshold must be between 0 and 100", except.ErrInvalid)
	}
	return nil
}

// execute drives a rollout to a terminal phase. Cleanup never runs on the
// rollout's own context: an abort cancels ctx, and the rollback that follows
// must still reach the cluster.
func (r *rolloutService) execute(ctx context.Context, run *rolloutRun, spec *model.RolloutSpec) {
	opt := spec.Opt

	run.setPhase(model.PhaseSnapshotting)
	if _, err := r.Backup.Snapshot(ctx, spec.WorkloadName, opt); err != nil {
		r.finish(run, spec, model.OutcomeFailed, false, err)
		return
	}
	if ctx.Err() != nil {
		// Aborted before anything was provisioned, so there is nothing to
		// roll back.
		r.finish(run, spec, model.OutcomeFailed, false, r.abortErr())
		return
	}

	run.setPhase(model.PhaseCandidateProvisioning)
	candidate, err := r.Backend.ProvisionCandidate(ctx, &model.ProvisionCandidateSpec{
		Opt:            opt,
		WorkloadName:   spec.WorkloadName,
		CandidateImage: spec.CandidateImage,
		ContainerName:  spec.ContainerName,
		Strategy:       spec.Strategy,
		CanaryWeight:   spec.CanaryWeight,
		RolloutId:      run.id(),
	})
	if err != nil {
		r.rollBack(run, spec, r.causeOrAbort(ctx, err), r.outcomeOrAbort(ctx, model.OutcomeFailed))
		return
	}
	if ctx.Err() != nil {
		r.rollBack(run, spec, r.abortErr(), model.OutcomeRolledBack)
		return
	}

	run.setPhase(model.PhaseTrafficShifting)
	if _, err := r.Traffic.BeginSplit(ctx, &model.BeginSplitSpec{
		Opt:          opt,
		WorkloadName: spec.WorkloadName,
		Strategy:     spec.Strategy,
		Weight:       spec.CanaryWeight,
	}); err != nil {
		r.rollBack(run, spec, r.causeOrAbort(ctx, err), r.outcomeOrAbort(ctx, model.OutcomeFailed))
		return
	}
	if ctx.Err() != nil {
		r.rollBack(run, spec, r.abortErr(), model.OutcomeRolledBack)
		return
	}

	run.setPhase(model.PhaseMonitoring)
	promote, cause, outcome := r.monitor(ctx, run, spec, candidate)
	if !promote {
		r.rollBack(run, spec, cause, outcome)
		return
	}

	run.setPhase(model.PhasePromoting)
	rev, err := r.Backend.Promote(ctx, &model.PromoteSpec{
		Opt:            opt,
		WorkloadName:   spec.WorkloadName,
		CandidateImage: spec.CandidateImage,
		ContainerName:  spec.ContainerName,
	})
	if err != nil {
		r.rollBack(run, spec, r.causeOrAbort(ctx, err), r.outcomeOrAbort(ctx, model.OutcomeFailed))
		return
	}

	if err := r.Traffic.FinalizeSplit(ctx, &model.FinalizeSplitSpec{
		Opt:          opt,
		WorkloadName: spec.WorkloadName,
		Promote:      true,
	}); err != nil {
		r.rollBack(run, spec, err, model.OutcomeFailed)
		return
	}

	if err := r.Backend.TeardownCandidate(ctx, &model.TeardownCandidateSpec{
		Opt:          opt,
		WorkloadName: spec.WorkloadName,
	}); err != nil {
		log.WithField("workload", spec.WorkloadName).
			WithField("namespace", opt.Namespace).
			WithError(err).
			Error("Promotion done but candidate resources were left behind")
	}

	run.setRevision(rev)
	r.finish(run, spec, model.OutcomePromoted, false, nil)
}

// monitor consumes health samples until the observation window closes or the
// success rate sinks below the threshold with enough evidence. The returned
// bool says whether to promote.
func (r *rolloutService) monitor(ctx context.Context, run *rolloutRun, spec *model.RolloutSpec, candidate *model.Candidate) (bool, error, model.Outcome) {
	url := spec.ProbeURL
	if url == "" {
		url = r.Health.CandidateURL(candidate)
	}

	mctx, mcancel := context.WithCancel(ctx)
	defer mcancel()

	samples := r.Health.Monitor(mctx, &model.MonitorSpec{
		WorkloadName: spec.WorkloadName,
		URL:          url,
		Interval:     spec.Interval,
		ProbeTimeout: r.Config.Probe.Timeout,
	})

	deadline := time.NewTimer(spec.ObserveDuration)
	defer deadline.Stop()

	log.WithField("workload", spec.WorkloadName).
		WithField("namespace", spec.Opt.Namespace).
		WithField("url", url).
		WithField("duration", spec.ObserveDuration).
		WithField("interval", spec.Interval).
		WithField("threshold", spec.Threshold).
		WithField("min_samples", spec.MinSamples).
		Info("Monitoring candidate health")

	for {
		select {
		case <-ctx.Done():
			return false, r.abortErr(), model.OutcomeRolledBack

		case s, ok := <-samples:
			if !ok {
				samples = nil
				continue
			}
			w := run.observe(s)

			result := "unhealthy"
			if s.Healthy {
				result = "healthy"
			}
			metrics.HealthSamplesTotal.WithLabelValues(spec.WorkloadName, result).Inc()
			metrics.SuccessRate.WithLabelValues(spec.WorkloadName).Set(w.SuccessRate())

			if w.Total >= spec.MinSamples && w.SuccessRate() < spec.Threshold {
				return false, except.NewError("success rate %.1f%% fell below threshold %.1f%% after %d samples",
					except.ErrInternalError, w.SuccessRate(), spec.Threshold, w.Total), model.OutcomeRolledBack
			}

		case <-deadline.C:
			mcancel()
			w := run.window()
			if w.Total < spec.MinSamples {
				return false, except.NewError("observation window closed with %d of %d required samples",
					except.ErrInsufficientEvidence, w.Total, spec.MinSamples), model.OutcomeRolledBack
			}
			if w.SuccessRate() >= spec.Threshold {
				return true, nil, model.OutcomePromoted
			}
			return false, except.NewError("success rate %.1f%% was below threshold %.1f%% at the deadline",
				except.ErrInternalError, w.SuccessRate(), spec.Threshold), model.OutcomeRolledBack
		}
	}
}

func (r *rolloutService) rollBack(run *rolloutRun, spec *model.RolloutSpec, cause error, outcome model.Outcome) {
	opt := spec.Opt
	run.setPhase(model.PhaseRollingBack)

	log.WithField("workload", spec.WorkloadName).
		WithField("namespace", opt.Namespace).
		WithError(cause).
		Warn("Rolling back")

	// The rollout context may already be canceled. Cleanup gets a fresh,
	// bounded one so an abort cannot strand the cluster mid-rollback.
	ctx, cancel := context.WithTimeout(context.Background(), r.Config.Rollout.ReadyTimeout)
	defer cancel()

	manual := false
	batch := except.NewBatchError("rollback of workload %s did not fully clean up", spec.WorkloadName)

	if err := r.Traffic.FinalizeSplit(ctx, &model.FinalizeSplitSpec{
		Opt:          opt,
		WorkloadName: spec.WorkloadName,
		Promote:      false,
	}); err != nil {
		batch.Add(err)
	}

	if err := r.Backup.Restore(ctx, spec.WorkloadName, opt); err != nil {
		manual = true
		batch.Add(err)
		log.WithField("workload", spec.WorkloadName).
			WithField("namespace", opt.Namespace).
			WithError(err).
			Error("Restore failed; manual intervention required")
	}

	if err := r.Backend.TeardownCandidate(ctx, &model.TeardownCandidateSpec{
		Opt:          opt,
		WorkloadName: spec.WorkloadName,
	}); err != nil {
		batch.Add(err)
	}

	if batch.Len() > 0 {
		cause = except.NewError("%s; %s", except.Reason(cause), cause, batch)
	}
	if manual {
		outcome = model.OutcomeFailed
	}

	r.finish(run, spec, outcome, manual, cause)
}

func (r *rolloutService) finish(run *rolloutRun, spec *model.RolloutSpec, outcome model.Outcome, manual bool, cause error) {
	phase := model.PhaseFailed
	if outcome == model.OutcomePromoted {
		phase = model.PhaseSucceeded
	}
	state := run.finish(phase, outcome, manual, cause)

	metrics.RolloutsTotal.WithLabelValues(string(spec.Strategy), string(outcome)).Inc()
	metrics.RolloutDuration.WithLabelValues(string(spec.Strategy)).Observe(time.Since(state.StartTime).Seconds())
	if manual {
		metrics.ManualInterventionsTotal.Inc()
	}

	entry := log.WithField("workload", spec.WorkloadName).
		WithField("namespace", spec.Opt.Namespace).
		WithField("phase", state.Phase).
		WithField("outcome", state.Outcome).
		WithField("samples", state.Window.Total).
		WithField("success_rate", state.Window.SuccessRate())
	if cause != nil {
		entry = entry.WithField("reason", cause.Error())
	}
	entry.Info("Rollout finished")
}

func (r *rolloutService) abortErr() error {
	return except.NewError("rollout aborted by operator", except.ErrAborted)
}

func (r *rolloutService) causeOrAbort(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return r.abortErr()
	}
	return err
}

func (r *rolloutService) outcomeOrAbort(ctx context.Context, outcome model.Outcome) model.Outcome {
	if ctx.Err() != nil {
		return model.OutcomeRolledBack
	}
	return outcome
}

type rolloutRun struct {
	lock  sync.RWMutex
	state model.RolloutState
}

func (r *rolloutRun) id() string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.state.ID
}

func (r *rolloutRun) setPhase(to model.Phase) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if !r.state.Phase.CanTransition(to) {
		log.WithField("workload", r.state.WorkloadName).
			WithField("from", r.state.Phase).
			WithField("to", to).
			Error("Refusing invalid phase transition")
		return
	}

	log.WithField("workload", r.state.WorkloadName).
		WithField("namespace", r.state.Namespace).
		WithField("from", r.state.Phase).
		WithField("to", to).
		Info("Rollout phase changed")

	r.state.Phase = to
}

func (r *rolloutRun) setRevision(rev int64) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.state.NewRevision = rev
}

func (r *rolloutRun) observe(s model.HealthSample) model.SampleWindow {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.state.Window.Observe(s)
	return r.state.Window
}

func (r *rolloutRun) window() model.SampleWindow {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.state.Window
}

func (r *rolloutRun) finish(phase model.Phase, outcome model.Outcome, manual bool, cause error) model.RolloutState {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.state.Phase.CanTransition(phase) {
		r.state.Phase = phase
	}
	r.state.Outcome = outcome
	r.state.ManualIntervention = manual
	if cause != nil {
		r.state.FailureReason = cause.Error()
	}
	now := time.Now().UTC()
	r.state.EndTime = &now

	return r.state
}

func (r *rolloutRun) snapshot() *model.RolloutState {
	r.lock.RLock()
	defer r.lock.RUnlock()
	state := r.state
	return &state
}
