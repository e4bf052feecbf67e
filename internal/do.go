package internal

import (
	"github.com/samber/do/v2"

	"github.com/willie68/go_tpkutils/internal/config"
	"github.com/willie68/go_tpkutils/internal/logging"
	"github.com/willie68/go_tpkutils/internal/model"
	"github.com/willie68/go_tpkutils/internal/provider"
	"github.com/willie68/go_tpkutils/internal/tilecache"
	"github.com/willie68/go_tpkutils/internal/utils/measurement"
)

// Init wires up the service components for the preview server.
func Init(inj do.Injector) {
	config.Init(inj)
	do.ProvideValue(inj, measurement.New(true))
	tilecache.Init(inj)
	provider.Init(inj)
}

type sourceFactory interface {
	HasSource(name string) bool
	Close() error
}

type tileCache interface {
	Tile(tile model.ServeTile) ([]byte, bool)
	Close() error
}

func Stop(inj do.Injector) {
	log := logging.New().WithName("internal")
	if sf, err := do.InvokeAs[sourceFactory](inj); err == nil {
		if err := sf.Close(); err != nil {
			log.Errorf("error on close sources: %v", err)
		}
	}
	if tc, err := do.InvokeAs[tileCache](inj); err == nil {
		if err := tc.Close(); err != nil {
			log.Errorf("error on close tilecache: %v", err)
		}
	}
}
