package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/technova-cloud/ramp/core/except"
	"github.com/technova-cloud/ramp/core/kube/kconfig"
	"github.com/technova-cloud/ramp/rollout/pkg/model/consts"
	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

type KubeStoreTestSuite struct {
	suite.Suite
	kube  *fake.Clientset
	store SnapshotStore
	opt   kconfig.Opt
}

func (k *KubeStoreTestSuite) SetupTest() {
	k.kube = fake.NewSimpleClientset()
	k.store = NewKubeStore(&KubeStoreSpec{Interface: k.kube})
	k.opt = kconfig.Opt{Namespace: "default"}
}

func (k *KubeStoreTestSuite) snapshot(taken int64) *Snapshot {
	return &Snapshot{
		WorkloadName: "echo-server",
		Namespace:    "default",
		Taken:        time.Unix(taken, 0).UTC(),
		Deploy: &appsv1.Deployment{
			ObjectMeta: metav1.ObjectMeta{
				Name:      "echo-server",
				Namespace: "default",
			},
		},
	}
}

func (k *KubeStoreTestSuite) TestSaveCreatesLabeledConfigMap() {
	// -- Given
	//
	snap := k.snapshot(1700000000)

	// -- When
	//
	err := k.store.Save(context.Background(), snap)

	// -- Then
	//
	if k.NoError(err) {
		cm, err := k.kube.CoreV1().ConfigMaps("default").Get(context.Background(), snap.Name(), metav1.GetOptions{})
		if k.NoError(err) {
			k.Equal(consts.LabelValueResourceSnapshot, cm.Labels[consts.LabelKeyResource])
			k.Equal("echo-server", cm.Labels[consts.LabelKeyWorkload])
			k.NotEmpty(cm.BinaryData["snapshot"])
		}
	}
}

func (k *KubeStoreTestSuite) TestSaveTwiceUpserts() {
	// -- Given
	//
	snap := k.snapshot(1700000000)

	// -- When
	//
	first := k.store.Save(context.Background(), snap)
	second := k.store.Save(context.Background(), snap)

	// -- Then
	//
	k.NoError(first)
	k.NoError(second)

	snaps, err := k.store.FetchAll(context.Background(), "echo-server", k.opt)
	if k.NoError(err) {
		k.Len(snaps, 1)
	}
}

func (k *KubeStoreTestSuite) TestLatestPicksNewest() {
	// -- Given
	//
	k.NoError(k.store.Save(context.Background(), k.snapshot(1700000000)))
	k.NoError(k.store.Save(context.Background(), k.snapshot(1700000600)))
	k.NoError(k.store.Save(context.Background(), k.snapshot(1700000300)))

	// -- When
	//
	latest, err := k.store.Latest(context.Background(), "echo-server", k.opt)

	// -- Then
	//
	if k.NoError(err) {
		k.Equal(time.Unix(1700000600, 0).UTC(), latest.Taken)
	}
}

func (k *KubeStoreTestSuite) TestLatestWithoutSnapshots() {
	// -- When
	//
	_, err := k.store.Latest(context.Background(), "echo-server", k.opt)

	// -- Then
	//
	k.Error(err)
	k.Equal(except.ErrNotFound, except.Reason(err))
}

func (k *KubeStoreTestSuite) TestFetchAllNewestFirst() {
	// -- Given
	//
	k.NoError(k.store.Save(context.Background(), k.snapshot(1700000000)))
	k.NoError(k.store.Save(context.Background(), k.snapshot(1700000600)))
	k.NoError(k.store.Save(context.Background(), k.snapshot(1700000300)))

	// -- When
	//
	snaps, err := k.store.FetchAll(context.Background(), "echo-server", k.opt)

	// -- Then
	//
	if k.NoError(err) && k.Len(snaps, 3) {
		k.Equal(time.Unix(1700000600, 0).UTC(), snaps[0].Taken)
		k.Equal(time.Unix(1700000300, 0).UTC(), snaps[1].Taken)
		k.Equal(time.Unix(1700000000, 0).UTC(), snaps[2].Taken)
	}
}

func (k *KubeStoreTestSuite) TestFetchAllIgnoresOtherWorkloads() {
	// -- Given
	//
	k.NoError(k.store.Save(context.Background(), k.snapshot(1700000000)))

	other := k.snapshot(1700000600)
	other.WorkloadName = "other-server"
	k.NoError(k.store.Save(context.Background(), other))

	// -- When
	//
	snaps, err := k.store.FetchAll(context.Background(), "echo-server", k.opt)

	// -- Then
	//
	if k.NoError(err) && k.Len(snaps, 1) {
		k.Equal("echo-server", snaps[0].WorkloadName)
	}
}

func (k *KubeStoreTestSuite) TestPruneKeepsNewest() {
	// -- Given
	//
	for i := int64(0); i < 5; i++ {
		k.NoError(k.store.Save(context.Background(), k.snapshot(1700000000+i*60)))
	}

	// -- When
	//
	pruned, err := k.store.Prune(context.Background(), "echo-server", 2, k.opt)

	// -- Then
	//
	if k.NoError(err) {
		k.Equal(3, pruned)
	}

	snaps, err := k.store.FetchAll(context.Background(), "echo-server", k.opt)
	if k.NoError(err) && k.Len(snaps, 2) {
		k.Equal(time.Unix(1700000240, 0).UTC(), snaps[0].Taken)
		k.Equal(time.Unix(1700000180, 0).UTC(), snaps[1].Taken)
	}
}

func (k *KubeStoreTestSuite) TestPruneBelowRetentionIsNoop() {
	// -- Given
	//
	k.NoError(k.store.Save(context.Background(), k.snapshot(1700000000)))

	// -- When
	//
	pruned, err := k.store.Prune(context.Background(), "echo-server", 5, k.opt)

	// -- Then
	//
	if k.NoError(err) {
		k.Equal(0, pruned)
	}
}

func (k *KubeStoreTestSuite) TestSnapshotSurvivesRoundTrip() {
	// -- Given
	//
	snap := k.snapshot(1700000000)

	// -- When
	//
	k.NoError(k.store.Save(context.Background(), snap))
	latest, err := k.store.Latest(context.Background(), "echo-server", k.opt)

	// -- Then
	//
	if k.NoError(err) {
		k.Equal("echo-server", latest.WorkloadName)
		k.Equal("default", latest.Namespace)
		if k.NotNil(latest.Deploy) {
			k.Equal("echo-server", latest.Deploy.Name)
		}
		k.Nil(latest.Service)
		k.Nil(latest.Ingress)
	}
}

func TestKubeStoreTestSuite(t *testing.T) {
	suite.Run(t, new(KubeStoreTestSuite))
}
