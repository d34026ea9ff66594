package store

import (
	"context"
	"sort"
	"sync"

	"github.com/technova-cloud/ramp/core/except"
	"github.com/technova-cloud/ramp/core/kube/kconfig"
)

// NewMemStore returns a SnapshotStore held entirely in memory. It backs dry
// runs and tests, where nothing should touch the cluster.
func NewMemStore() SnapshotStore {
	return &memStore{
		snaps: map[string]Snapshot{},
	}
}

type memStore struct {
	snaps map[string]Snapshot
	lock  sync.RWMutex
}

func (m *memStore) Save(_ context.Context, snapshot *Snapshot) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.snaps[snapshot.Name()] = *snapshot
	return nil
}

func (m *memStore) Latest(ctx context.Context, workloadName string, opt kconfig.Opt) (*Snapshot, error) {
	snaps, err := m.FetchAll(ctx, workloadName, opt)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, except.NewError("no snapshots exist for workload %s", except.ErrNotFound, workloadName)
	}
	return &snaps[0], nil
}

func (m *memStore) FetchAll(_ context.Context, workloadName string, opt kconfig.Opt) ([]Snapshot, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	snaps := make([]Snapshot, 0, len(m.snaps))
	for _, s := range m.snaps {
		if s.WorkloadName == workloadName && s.Namespace == opt.Namespace {
			snaps = append(snaps, s)
		}
	}

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].Taken.After(snaps[j].Taken)
	})

	return snaps, nil
}

func (m *memStore) Delete(_ context.Context, name string, opt kconfig.Opt) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if _, ok := m.snaps[name]; !ok {
		return except.NewError("snapshot %s does not exist", except.ErrNotFound, name)
	}
	delete(m.snaps, name)
	return nil
}

func (m *memStore) Prune(ctx context.Context, workloadName string, keep int, opt kconfig.Opt) (int, error) {
	snaps, err := m.FetchAll(ctx, workloadName, opt)
	if err != nil {
		return 0, err
	}

	if keep < 0 {
		keep = 0
	}

	pruned := 0
	for i := keep; i < len(snaps); i++ {
		if err := m.Delete(ctx, snaps[i].Name(), opt); err != nil {
			return pruned, err
		}
		pruned++
	}

	return pruned, nil
}
