package app

import (
	"github.com/vk/mdaogrid/internal/registry"
	"github.com/vk/mdaogrid/modules/execcomp"
	"github.com/vk/mdaogrid/modules/indepvar"
	"github.com/vk/mdaogrid/modules/linsys"
)

// coreModules is the definitive list of all component types compiled into
// the mdaogrid binary.
var coreModules = []registry.Module{
	&indepvar.Module{},
	&execcomp.Module{},
	&linsys.Module{},
}
