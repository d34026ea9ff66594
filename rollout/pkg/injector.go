package pkg

import (
	"github.com/eddieowens/axon"
	"github.com/technova-cloud/ramp/rollout/pkg/config"
	"github.com/technova-cloud/ramp/rollout/pkg/controller"
	"github.com/technova-cloud/ramp/rollout/pkg/factory"
	"github.com/technova-cloud/ramp/rollout/pkg/service"
)

func InjectorFactory() axon.Injector {
	return axon.NewInjector(axon.NewBinder(
		new(service.Package),
		new(factory.Package),
		new(config.Package),
		new(controller.Package),
		new(Package),
	))
}
