package factory

import "github.com/eddieowens/axon"

type Package struct {
}

func (p *Package) Bindings() []axon.Binding {
	return []axon.Binding{
		axon.Bind(CandidateFactoryKey).To().StructPtr(new(candidateFactory)),
		axon.Bind(IngressFactoryKey).To().StructPtr(new(ingressFactory)),
	}
}
