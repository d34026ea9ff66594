package service

import (
	"net/http"

	"github.com/eddieowens/axon"
	"github.com/technova-cloud/ramp/core/kube"
	"github.com/technova-cloud/ramp/core/kube/kconfig"
	"github.com/technova-cloud/ramp/rollout/pkg/config"
	"github.com/technova-cloud/ramp/rollout/pkg/snap/store"
	"github.com/technova-cloud/ramp/synchelpers"
)

type Package struct {
}

const KubeClientKey = "KubeClient"

const SnapshotStoreKey = "SnapshotStore"

func kubeClientFactory(inj axon.Injector, _ axon.Args) axon.Instance {
	conf := inj.GetStructPtr(config.ConfigKey).(*config.Config)
	spec := kube.ClientSpec{
		Config: kconfig.ConfigSpec{
			ConfigPath: conf.Kube.Config,
		},
		Context: conf.Kube.Context,
	}

	k, err := kube.NewClient(spec)
	if err != nil {
		panic(err)
	}
	return axon.StructPtr(k)
}

func snapshotStoreFactory(inj axon.Injector, _ axon.Args) axon.Instance {
	conf := inj.GetStructPtr(config.ConfigKey).(*config.Config)

	var snapStore store.SnapshotStore
	if conf.Snapshots.Store == "memory" {
		snapStore = store.NewMemStore()
	} else {
		client := inj.GetStructPtr(KubeClientKey).(kube.Client)
		snapStore = store.NewKubeStore(&store.KubeStoreSpec{
			Interface: client.Api(),
		})
	}

	return axon.StructPtr(snapStore)
}

func proberFactory(_ axon.Injector, _ axon.Args) axon.Instance {
	return axon.StructPtr(&httpProber{
		Client: &http.Client{},
	})
}

func rolloutServiceFactory(_ axon.Injector, _ axon.Args) axon.Instance {
	return axon.StructPtr(&rolloutService{
		Locks:   synchelpers.NewLockMap(),
		Cancels: synchelpers.NewCancelFuncMap(),
		runs:    map[string]*rolloutRun{},
	})
}

func (p *Package) Bindings() []axon.Binding {
	return []axon.Binding{
		axon.Bind(DeployBackendServiceKey).To().StructPtr(new(deployBackendService)),
		axon.Bind(TrafficServiceKey).To().StructPtr(new(trafficService)),
		axon.Bind(HealthMonitorServiceKey).To().StructPtr(new(healthMonitorService)),
		axon.Bind(BackupServiceKey).To().StructPtr(new(backupService)),
		axon.Bind(KubeClientKey).To().Factory(kubeClientFactory).WithoutArgs(),
		axon.Bind(SnapshotStoreKey).To().Factory(snapshotStoreFactory).WithoutArgs(),
		axon.Bind(ProberKey).To().Factory(proberFactory).WithoutArgs(),
		axon.Bind(RolloutServiceKey).To().Factory(rolloutServiceFactory).WithoutArgs(),
	}
}
