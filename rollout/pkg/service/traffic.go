package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/technova-cloud/ramp/core/except"
	"github.com/technova-cloud/ramp/core/kube"
	"github.com/technova-cloud/ramp/core/kube/kconfig"
	"github.com/technova-cloud/ramp/core/kube/kubeutil"
	"github.com/technova-cloud/ramp/rollout/pkg/factory"
	"github.com/technova-cloud/ramp/rollout/pkg/model"
	"github.com/technova-cloud/ramp/rollout/pkg/model/consts"
	log "github.com/sirupsen/logrus"
	networkingv1 "k8s.io/api/networking/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const TrafficServiceKey = "TrafficService"

type TrafficService interface {
	// BeginSplit routes the spec weight of public traffic to the candidate.
	// Safe to call again with the same spec.
	BeginSplit(ctx context.Context, spec *model.BeginSplitSpec) (*model.TrafficSplit, error)
	// FinalizeSplit collapses the split so all public traffic goes to the
	// stable workload again, whichever way the rollout ended. Absent split
	// constructs are fine.
	FinalizeSplit(ctx context.Context, spec *model.FinalizeSplitSpec) error
	CurrentSplit(ctx context.Context, workloadName string, opt kconfig.Opt) (*model.TrafficSplit, error)
}

type trafficService struct {
	KubeClient     kube.Client            `inject:"KubeClient"`
	IngressFactory factory.IngressFactory `inject:"IngressFactory"`
}

func (t *trafficService) BeginSplit(ctx context.Context, spec *model.BeginSplitSpec) (*model.TrafficSplit, error) {
	opt := spec.Opt

	// Blue-green keeps the public route untouched: the candidate is reached
	// through its own Service until promotion swaps the stable workload.
	if spec.Strategy == model.StrategyBlueGreen {
		log.WithField("workload", spec.WorkloadName).
			WithField("namespace", opt.Namespace).
			Info("Blue-green split: candidate reachable on preview route only")
		return &model.TrafficSplit{
			WorkloadName: spec.WorkloadName,
			StableWeight: 100,
			Active:       true,
		}, nil
	}

	stableIng, err := t.stableIngress(ctx, spec.WorkloadName, opt)
	if err != nil {
		return nil, err
	}

	canary := t.IngressFactory.CanaryFromStable(stableIng, spec.WorkloadName, factory.CandidateName(spec.WorkloadName), spec.Weight)
	if _, err := t.KubeClient.UpsertIngress(ctx, canary, opt); err != nil {
		return nil, err
	}

	log.WithField("workload", spec.WorkloadName).
		WithField("namespace", opt.Namespace).
		WithField("ingress", canary.Name).
		WithField("weight", spec.Weight).
		Info("Canary traffic split in place")

	return &model.TrafficSplit{
		WorkloadName:    spec.WorkloadName,
		StableWeight:    100 - spec.Weight,
		CandidateWeight: spec.Weight,
		IngressName:     canary.Name,
		Active:          true,
	}, nil
}

func (t *trafficService) FinalizeSplit(ctx context.Context, spec *model.FinalizeSplitSpec) error {
	opt := spec.Opt

	canaries, err := t.canaryIngresses(ctx, spec.WorkloadName, opt)
	if err != nil {
		return err
	}

	for i := range canaries.Items {
		name := canaries.Items[i].Name
		if err := t.KubeClient.DeleteIngress(ctx, name, opt); err != nil && !errors.IsNotFound(err) {
			return err
		}
		log.WithField("workload", spec.WorkloadName).
			WithField("namespace", opt.Namespace).
			WithField("ingress", name).
			WithField("promote", spec.Promote).
			Info("Canary traffic split removed")
	}

	return nil
}

func (t *trafficService) CurrentSplit(ctx context.Context, workloadName string, opt kconfig.Opt) (*model.TrafficSplit, error) {
	split := &model.TrafficSplit{
		WorkloadName: workloadName,
		StableWeight: 100,
	}

	canaries, err := t.canaryIngresses(ctx, workloadName, opt)
	if err != nil {
		return nil, err
	}

	if len(canaries.Items) == 0 {
		return split, nil
	}

	ing := canaries.Items[0]
	w, err := strconv.Atoi(ing.Annotations[consts.AnnotationNginxCanaryWeight])
	if err != nil {
		return nil, except.NewError("ingress %s carries an unreadable canary weight", except.ErrInternalError, ing.Name)
	}

	split.CandidateWeight = int32(w)
	split.StableWeight = 100 - int32(w)
	split.IngressName = ing.Name
	split.Active = true

	return split, nil
}

// stableIngress finds the ingress fronting the workload's own Service. The
// stable Service is named after the workload.
func (t *trafficService) stableIngress(ctx context.Context, workloadName string, opt kconfig.Opt) (*networkingv1.Ingress, error) {
	ings, err := t.KubeClient.ListIngresses(ctx, metav1.ListOptions{}, opt)
	if err != nil {
		return nil, err
	}

	for i := range ings.Items {
		ing := &ings.Items[i]
		if ing.Labels[consts.LabelKeyResource] == consts.LabelValueResourceCandidate {
			continue
		}
		if kubeutil.IngressReferencesService(ing, workloadName) {
			return ing, nil
		}
	}

	return nil, except.NewError("no ingress routes to service %s in namespace %s; a weighted canary needs one",
		except.ErrInvalid, workloadName, opt.Namespace)
}

func (t *trafficService) canaryIngresses(ctx context.Context, workloadName string, opt kconfig.Opt) (*networkingv1.IngressList, error) {
	lo := metav1.ListOptions{
		LabelSelector: fmt.Sprintf("%s=%s,%s=%s",
			consts.LabelKeyResource, consts.LabelValueResourceCandidate,
			consts.LabelKeyCandidate, workloadName),
	}
	return t.KubeClient.ListIngresses(ctx, lo, opt)
}
