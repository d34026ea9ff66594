package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/technova-cloud/ramp/core/except"
	"github.com/technova-cloud/ramp/core/kube/kconfig"
	"github.com/technova-cloud/ramp/rollout/pkg/meta"
	"github.com/technova-cloud/ramp/rollout/pkg/model/consts"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

const binaryDataKey = "snapshot"

type KubeStoreSpec struct {
	Interface kubernetes.Interface
}

func NewKubeStore(spec *KubeStoreSpec) SnapshotStore {
	return &kubeStore{
		Interface: spec.Interface,
	}
}

type kubeStore struct {
	Interface kubernetes.Interface
}

func (k *kubeStore) Save(ctx context.Context, snapshot *Snapshot) error {
	b, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	cm := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      snapshot.Name(),
			Namespace: snapshot.Namespace,
			Labels: map[string]string{
				consts.LabelKeyResource: consts.LabelValueResourceSnapshot,
				consts.LabelKeyWorkload: snapshot.WorkloadName,
			},
			Annotations: meta.ToMap(&meta.Snapshot{
				WorkloadName: snapshot.WorkloadName,
				TakenUnix:    snapshot.Taken.Unix(),
			}),
		},
		BinaryData: map[string][]byte{
			binaryDataKey: b,
		},
	}

	_, err = upsertConfigMap(ctx, k.Interface, cm, snapshot.Namespace)
	return err
}

func (k *kubeStore) Latest(ctx context.Context, workloadName string, opt kconfig.Opt) (*Snapshot, error) {
	snaps, err := k.FetchAll(ctx, workloadName, opt)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, except.NewError("no snapshots exist for workload %s", except.ErrNotFound, workloadName)
	}
	return &snaps[0], nil
}

// FetchAll returns the workload's snapshots newest first.
func (k *kubeStore) FetchAll(ctx context.Context, workloadName string, opt kconfig.Opt) ([]Snapshot, error) {
	lo := metav1.ListOptions{
		LabelSelector: fmt.Sprintf("%s=%s,%s=%s",
			consts.LabelKeyResource, consts.LabelValueResourceSnapshot,
			consts.LabelKeyWorkload, workloadName),
	}

	cms, err := k.Interface.CoreV1().ConfigMaps(opt.Namespace).List(ctx, lo)
	if err != nil {
		return nil, err
	}

	snaps := make([]Snapshot, len(cms.Items))
	for i, c := range cms.Items {
		s, err := k.configMapToSnapshot(&c)
		if err != nil {
			return nil, err
		}
		snaps[i] = *s
	}

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].Taken.After(snaps[j].Taken)
	})

	return snaps, nil
}

func (k *kubeStore) Delete(ctx context.Context, name string, opt kconfig.Opt) error {
	return k.Interface.CoreV1().ConfigMaps(opt.Namespace).Delete(ctx, name, metav1.DeleteOptions{})
}

func (k *kubeStore) Prune(ctx context.Context, workloadName string, keep int, opt kconfig.Opt) (int, error) {
	snaps, err := k.FetchAll(ctx, workloadName, opt)
	if err != nil {
		return 0, err
	}

	if keep < 0 {
		keep = 0
	}

	pruned := 0
	for i := keep; i < len(snaps); i++ {
		if err := k.Delete(ctx, snaps[i].Name(), opt); err != nil && !errors.IsNotFound(err) {
			return pruned, err
		}
		pruned++
	}

	return pruned, nil
}

func (k *kubeStore) configMapToSnapshot(cm *corev1.ConfigMap) (*Snapshot, error) {
	s := new(Snapshot)
	if err := json.Unmarshal(cm.BinaryData[binaryDataKey], s); err != nil {
		return nil, err
	}
	return s, nil
}

func upsertConfigMap(ctx context.Context, api kubernetes.Interface, cm *corev1.ConfigMap, namespace string) (*corev1.ConfigMap, error) {
	out, err := api.CoreV1().ConfigMaps(namespace).Create(ctx, cm, metav1.CreateOptions{})
	if err != nil {
		if errors.IsAlreadyExists(err) {
			return api.CoreV1().ConfigMaps(namespace).Update(ctx, cm, metav1.UpdateOptions{})
		}
		return nil, err
	}
	return out, nil
}
