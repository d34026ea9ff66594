package service

import (
	"context"
	"time"

	"github.com/technova-cloud/ramp/core/except"
	"github.com/technova-cloud/ramp/core/kube"
	"github.com/technova-cloud/ramp/core/kube/kconfig"
	"github.com/technova-cloud/ramp/core/kube/kubeutil"
	"github.com/technova-cloud/ramp/rollout/pkg/config"
	"github.com/technova-cloud/ramp/rollout/pkg/model/consts"
	"github.com/technova-cloud/ramp/rollout/pkg/snap/store"
	log "github.com/sirupsen/logrus"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const BackupServiceKey = "BackupService"

type BackupService interface {
	// Snapshot captures the workload's stable Deployment, Service and Ingress
	// and persists them keyed by workload and time of capture.
	Snapshot(ctx context.Context, workloadName string, opt kconfig.Opt) (*store.Snapshot, error)
	// Restore reapplies the most recent snapshot of the workload.
	Restore(ctx context.Context, workloadName string, opt kconfig.Opt) error
	List(ctx context.Context, workloadName string, opt kconfig.Opt) ([]store.Snapshot, error)
	Prune(ctx context.Context, workloadName string, opt kconfig.Opt) (int, error)
}

type backupService struct {
	KubeClient    kube.Client          `inject:"KubeClient"`
	SnapshotStore store.SnapshotStore  `inject:"SnapshotStore"`
	Backend       DeployBackendService `inject:"DeployBackendService"`
	Config        *config.Config       `inject:"Config"`
}

func (b *backupService) Snapshot(ctx context.Context, workloadName string, opt kconfig.Opt) (*store.Snapshot, error) {
	stable, err := b.Backend.FetchStable(ctx, workloadName, opt)
	if err != nil {
		return nil, err
	}

	snapshot := &store.Snapshot{
		WorkloadName: workloadName,
		Namespace:    opt.Namespace,
		Taken:        time.Now().UTC(),
		Deploy:       sanitizeDeploy(stable),
	}

	svc, err := b.KubeClient.GetService(ctx, workloadName, opt)
	if err != nil && !errors.IsNotFound(err) {
		return nil, err
	}
	if err == nil {
		snapshot.Service = sanitizeService(svc)

		ing, err := b.stableIngress(ctx, svc.Name, opt)
		if err != nil {
			return nil, err
		}
		if ing != nil {
			snapshot.Ingress = sanitizeIngress(ing)
		}
	}

	if err := b.SnapshotStore.Save(ctx, snapshot); err != nil {
		return nil, err
	}

	log.WithField("workload", workloadName).
		WithField("namespace", opt.Namespace).
		WithField("snapshot", snapshot.Name()).
		Info("Snapshot saved")

	if _, err := b.SnapshotStore.Prune(ctx, workloadName, b.Config.Snapshots.Retention, opt); err != nil {
		log.WithField("workload", workloadName).
			WithField("namespace", opt.Namespace).
			WithError(err).
			Warn("Failed to prune old snapshots")
	}

	return snapshot, nil
}

func (b *backupService) Restore(ctx context.Context, workloadName string, opt kconfig.Opt) error {
	snapshot, err := b.SnapshotStore.Latest(ctx, workloadName, opt)
	if err != nil {
		return except.NewError("cannot restore workload %s: %s", except.ErrRestoreFailed, workloadName, err.Error())
	}

	if err := b.Backend.Restore(ctx, snapshot); err != nil {
		return except.NewError("restore of workload %s from snapshot %s failed: %s",
			except.ErrRestoreFailed, workloadName, snapshot.Name(), err.Error())
	}

	return nil
}

func (b *backupService) List(ctx context.Context, workloadName string, opt kconfig.Opt) ([]store.Snapshot, error) {
	return b.SnapshotStore.FetchAll(ctx, workloadName, opt)
}

func (b *backupService) Prune(ctx context.Context, workloadName string, opt kconfig.Opt) (int, error) {
	return b.SnapshotStore.Prune(ctx, workloadName, b.Config.Snapshots.Retention, opt)
}

func (b *backupService) stableIngress(ctx context.Context, serviceName string, opt kconfig.Opt) (*networkingv1.Ingress, error) {
	ings, err := b.KubeClient.ListIngresses(ctx, metav1.ListOptions{}, opt)
	if err != nil {
		return nil, err
	}

	for i := range ings.Items {
		ing := &ings.Items[i]
		if ing.Labels[consts.LabelKeyResource] == consts.LabelValueResourceCandidate {
			continue
		}
		if kubeutil.IngressReferencesService(ing, serviceName) {
			return ing, nil
		}
	}

	return nil, nil
}

func sanitizeMeta(om *metav1.ObjectMeta) {
	om.ResourceVersion = ""
	om.UID = ""
	om.Generation = 0
	om.CreationTimestamp = metav1.Time{}
	om.ManagedFields = nil
}

func sanitizeDeploy(dep *appsv1.Deployment) *appsv1.Deployment {
	out := dep.DeepCopy()
	sanitizeMeta(&out.ObjectMeta)
	out.Status = appsv1.DeploymentStatus{}
	return out
}

func sanitizeService(svc *corev1.Service) *corev1.Service {
	out := svc.DeepCopy()
	sanitizeMeta(&out.ObjectMeta)
	out.Status = corev1.ServiceStatus{}
	return out
}

func sanitizeIngress(ing *networkingv1.Ingress) *networkingv1.Ingress {
	out := ing.DeepCopy()
	sanitizeMeta(&out.ObjectMeta)
	out.Status = networkingv1.IngressStatus{}
	return out
}
