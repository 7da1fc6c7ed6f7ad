package orchestrator

import (
	"github.com/labops-dev/labops/pkg/backends"
	"github.com/labops-dev/labops/pkg/backends/real"
	"github.com/labops-dev/labops/pkg/backends/sdkstub"
	"github.com/labops-dev/labops/pkg/backends/sim"
	"github.com/labops-dev/labops/pkg/backends/webcam"
	"github.com/labops-dev/labops/pkg/errs"
	"github.com/labops-dev/labops/pkg/scenario"
)

// SelectBackend constructs the one backend variant named by
// RunRequest.BackendName (spec.md §9: one implementation per variant, selected at
// construction time, no shared base class).
func SelectBackend(name string, s scenario.Scenario) (backends.Backend, error) {
	switch name {
	case "sim":
		return sim.New(s), nil
	case "sdkstub", "sdk_stub":
		return sdkstub.New(), nil
	case "webcam":
		return webcam.New(), nil
	case "real":
		return real.New(), nil
	default:
		return nil, errs.New(errs.InputInvalid, "unknown backend '"+name+"'; expected one of sim, sdkstub, webcam, real")
	}
}
