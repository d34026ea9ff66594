package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/technova-cloud/ramp/core/except"
	"github.com/technova-cloud/ramp/core/kube"
	"github.com/technova-cloud/ramp/core/kube/kconfig"
	"github.com/technova-cloud/ramp/core/kube/kubeutil"
	"github.com/technova-cloud/ramp/rollout/pkg/config"
	"github.com/technova-cloud/ramp/rollout/pkg/factory"
	"github.com/technova-cloud/ramp/rollout/pkg/metrics"
	"github.com/technova-cloud/ramp/rollout/pkg/model"
	"github.com/technova-cloud/ramp/rollout/pkg/snap/store"
	log "github.com/sirupsen/logrus"
	appsv1 "k8s.io/api/apps/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/retry"
)

const DeployBackendServiceKey = "DeployBackendService"

type DeployBackendService interface {
	FetchStable(ctx context.Context, workloadName string, opt kconfig.Opt) (*appsv1.Deployment, error)
	ProvisionCandidate(ctx context.Context, spec *model.ProvisionCandidateSpec) (*model.Candidate, error)
	// Promote points the stable workload at the candidate image, waits for the
	// rolling update to settle and returns the new revision number.
	Promote(ctx context.Context, spec *model.PromoteSpec) (int64, error)
	TeardownCandidate(ctx context.Context, spec *model.TeardownCandidateSpec) error
	Restore(ctx context.Context, snapshot *store.Snapshot) error
	RevisionHistory(ctx context.Context, workloadName string, opt kconfig.Opt) ([]model.Revision, error)
}

type deployBackendService struct {
	KubeClient       kube.Client              `inject:"KubeClient"`
	CandidateFactory factory.CandidateFactory `inject:"CandidateFactory"`
	Config           *config.Config           `inject:"Config"`
}

func (d *deployBackendService) FetchStable(ctx context.Context, workloadName string, opt kconfig.Opt) (*appsv1.Deployment, error) {
	dep, err := d.KubeClient.GetDeploy(ctx, workloadName, opt)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, except.NewError("workload %s does not exist in namespace %s", except.ErrNotFound, workloadName, opt.Namespace)
		}
		return nil, err
	}
	return dep, nil
}

func (d *deployBackendService) ProvisionCandidate(ctx context.Context, spec *model.ProvisionCandidateSpec) (*model.Candidate, error) {
	opt := spec.Opt

	stable, err := d.FetchStable(ctx, spec.WorkloadName, opt)
	if err != nil {
		return nil, err
	}

	replicas := kubeutil.Replicas(stable)
	if spec.Strategy == model.StrategyCanary {
		replicas = factory.DeriveReplicaCount(replicas, spec.CanaryWeight)
	}

	candidate := d.CandidateFactory.FromDeployment(spec, stable, replicas)

	log.WithField("workload", spec.WorkloadName).
		WithField("namespace", opt.Namespace).
		WithField("candidate", candidate.Name).
		WithField("image", spec.CandidateImage).
		WithField("replicas", replicas).
		Info("Provisioning candidate")

	if err := d.withRetry(ctx, func() error {
		_, err := d.KubeClient.UpsertDeploy(ctx, candidate, opt)
		return err
	}); err != nil {
		return nil, err
	}

	svc := d.CandidateFactory.ServiceFor(candidate)
	if err := d.withRetry(ctx, func() error {
		_, err := d.KubeClient.UpsertService(ctx, svc, opt)
		return err
	}); err != nil {
		_ = d.KubeClient.DeleteDeploy(ctx, candidate.Name, opt)
		return nil, err
	}

	if err := d.KubeClient.WaitTillDeployReady(ctx, candidate.Name, d.Config.Rollout.ReadyTimeout, opt); err != nil {
		_ = d.KubeClient.DeleteService(ctx, svc.Name, opt)
		_ = d.KubeClient.DeleteDeploy(ctx, candidate.Name, opt)
		return nil, err
	}

	return &model.Candidate{
		Deploy:  candidate,
		Service: svc,
	}, nil
}

func (d *deployBackendService) Promote(ctx context.Context, spec *model.PromoteSpec) (int64, error) {
	opt := spec.Opt

	log.WithField("workload", spec.WorkloadName).
		WithField("namespace", opt.Namespace).
		WithField("image", spec.CandidateImage).
		Info("Promoting candidate image to stable workload")

	// Get and update inside the retried closure so an apiserver conflict is
	// resolved against a fresh read.
	if err := d.withRetry(ctx, func() error {
		stable, err := d.KubeClient.GetDeploy(ctx, spec.WorkloadName, opt)
		if err != nil {
			return err
		}
		if !kubeutil.SetContainerImage(stable, spec.ContainerName, spec.CandidateImage) {
			return except.NewError("container %s does not exist on workload %s", except.ErrInvalid, spec.ContainerName, spec.WorkloadName)
		}
		_, err = d.KubeClient.UpdateDeploy(ctx, stable, opt)
		return err
	}); err != nil {
		return 0, err
	}

	if err := d.KubeClient.WaitTillDeployReady(ctx, spec.WorkloadName, d.Config.Rollout.ReadyTimeout, opt); err != nil {
		return 0, err
	}

	stable, err := d.KubeClient.GetDeploy(ctx, spec.WorkloadName, opt)
	if err != nil {
		return 0, err
	}

	return kubeutil.Revision(stable), nil
}

// TeardownCandidate removes the candidate Deployment and Service. Absent
// resources are fine: tearing down twice is a no-op.
func (d *deployBackendService) TeardownCandidate(ctx context.Context, spec *model.TeardownCandidateSpec) error {
	opt := spec.Opt
	name := factory.CandidateName(spec.WorkloadName)

	batch := except.NewBatchError("teardown of candidate %s failed", name)

	if err := d.KubeClient.DeleteDeploy(ctx, name, opt); err != nil && !errors.IsNotFound(err) {
		batch.Add(err)
	}
	if err := d.KubeClient.DeleteService(ctx, name, opt); err != nil && !errors.IsNotFound(err) {
		batch.Add(err)
	}

	if batch.Len() > 0 {
		return batch
	}

	log.WithField("workload", spec.WorkloadName).
		WithField("namespace", opt.Namespace).
		WithField("candidate", name).
		Info("Candidate torn down")

	return nil
}

// Restore reapplies a snapshot verbatim.
func (d *deployBackendService) Restore(ctx context.Context, snapshot *store.Snapshot) error {
	opt := kconfig.Opt{Namespace: snapshot.Namespace}

	log.WithField("workload", snapshot.WorkloadName).
		WithField("namespace", snapshot.Namespace).
		WithField("taken", snapshot.Taken).
		Info("Restoring workload from snapshot")

	if snapshot.Deploy == nil {
		return except.NewError("snapshot %s has no deployment", except.ErrInvalid, snapshot.Name())
	}

	deploy := snapshot.Deploy.DeepCopy()
	deploy.ResourceVersion = ""
	if err := d.withRetry(ctx, func() error {
		_, err := d.KubeClient.UpsertDeploy(ctx, deploy, opt)
		return err
	}); err != nil {
		return err
	}

	if snapshot.Service != nil {
		svc := snapshot.Service.DeepCopy()
		svc.ResourceVersion = ""
		if err := d.withRetry(ctx, func() error {
			_, err := d.KubeClient.UpsertService(ctx, svc, opt)
			return err
		}); err != nil {
			return err
		}
	}

	if snapshot.Ingress != nil {
		ing := snapshot.Ingress.DeepCopy()
		ing.ResourceVersion = ""
		if err := d.withRetry(ctx, func() error {
			_, err := d.KubeClient.UpsertIngress(ctx, ing, opt)
			return err
		}); err != nil {
			return err
		}
	}

	return d.KubeClient.WaitTillDeployReady(ctx, snapshot.WorkloadName, d.Config.Rollout.ReadyTimeout, opt)
}

// RevisionHistory lists the deployment's ReplicaSets newest revision first.
func (d *deployBackendService) RevisionHistory(ctx context.Context, workloadName string, opt kconfig.Opt) ([]model.Revision, error) {
	stable, err := d.FetchStable(ctx, workloadName, opt)
	if err != nil {
		return nil, err
	}

	selector := labels.Set(stable.Spec.Selector.MatchLabels).String()
	rss, err := d.KubeClient.ListReplicaSets(ctx, metav1.ListOptions{LabelSelector: selector}, opt)
	if err != nil {
		return nil, err
	}

	current := kubeutil.Revision(stable)
	revisions := make([]model.Revision, 0, len(rss.Items))
	for i := range rss.Items {
		rs := &rss.Items[i]
		if !ownedByDeploy(rs, workloadName) {
			continue
		}
		rev := model.Revision{
			Number:   kubeutil.Revision(rs),
			Replicas: rs.Status.Replicas,
			Created:  rs.CreationTimestamp.Time,
		}
		if cs := rs.Spec.Template.Spec.Containers; len(cs) > 0 {
			rev.Image = cs[0].Image
		}
		rev.Current = rev.Number == current && current != 0
		revisions = append(revisions, rev)
	}

	sort.Slice(revisions, func(i, j int) bool {
		return revisions[i].Number > revisions[j].Number
	})

	return revisions, nil
}

func (d *deployBackendService) backoff() wait.Backoff {
	return wait.Backoff{
		Steps:    d.Config.Rollout.RetryAttempts,
		Duration: d.Config.Rollout.RetryDelay,
		Factor:   2.0,
		Jitter:   0.1,
	}
}

func (d *deployBackendService) withRetry(ctx context.Context, fn func() error) error {
	return retry.OnError(d.backoff(), func(err error) bool {
		if ctx.Err() != nil {
			return false
		}
		if except.IsTransient(err) {
			metrics.BackendRetriesTotal.Inc()
			log.WithError(err).Warn("Retrying orchestrator call after transient error")
			return true
		}
		return false
	}, fn)
}

func ownedByDeploy(rs *appsv1.ReplicaSet, deployName string) bool {
	for _, or := range rs.OwnerReferences {
		if or.Kind == "Deployment" && or.Name == deployName {
			return true
		}
	}
	return false
}

func rolloutKey(namespace, workloadName string) string {
	return fmt.Sprintf("%s/%s", namespace, workloadName)
}
