package controller

import "github.com/eddieowens/axon"

const ControllersKey = "Controllers"

type Package struct {
}

func (p *Package) Bindings() []axon.Binding {
	return []axon.Binding{
		axon.Bind(RolloutControllerKey).To().StructPtr(new(rolloutController)),
		axon.Bind(TrafficControllerKey).To().StructPtr(new(trafficController)),
		axon.Bind(SnapshotControllerKey).To().StructPtr(new(snapshotController)),
		axon.Bind(ControllersKey).To().Keys(RolloutControllerKey, TrafficControllerKey, SnapshotControllerKey),
	}
}
