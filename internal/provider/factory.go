// Package provider delivers tiles for the named sources of the preview
// server, backed by tile packages or mbtiles files.
package provider

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/samber/do/v2"

	"github.com/willie68/go_tpkutils/internal/logging"
	"github.com/willie68/go_tpkutils/internal/model"
	"github.com/willie68/go_tpkutils/internal/tpk"
)

type Service interface {
	Tile(tile model.ServeTile) (io.ReadCloser, error)
	Format() string
	Close() error
}

type ConfigMap map[string]Config

type Config struct {
	Type     string `yaml:"type"` // tpk, mbtiles
	Path     string `yaml:"path"`
	NoCached bool   `yaml:"nocache"`
}

type pFactory struct {
	log      *logging.Logger
	configs  ConfigMap
	services []string
	inj      do.Injector
}

type sourcesConfig interface {
	GetSourcesConfig() ConfigMap
}

func Init(inj do.Injector) {
	sf := pFactory{
		log:      logging.New().WithName("factory"),
		configs:  do.MustInvokeAs[sourcesConfig](inj).GetSourcesConfig(),
		services: make([]string, 0),
		inj:      inj,
	}
	do.ProvideValue(inj, &sf)
	for sname, config := range sf.configs {
		switch config.Type {
		case "tpk":
			s, err := NewTPKProvider(sname, config)
			if err != nil {
				sf.log.Fatalf("source %s: %v", sname, err)
			}
			do.ProvideNamedValue[Service](inj, sname, s)
			sf.services = append(sf.services, sname)
		case "mbtiles":
			s, err := NewMBTilesProvider(sname, config)
			if err != nil {
				sf.log.Fatalf("source %s: %v", sname, err)
			}
			do.ProvideNamedValue[Service](inj, sname, s)
			sf.services = append(sf.services, sname)
		default:
			panic(fmt.Sprintf("unknown source type: %s", config.Type))
		}
	}
}

func (f *pFactory) HasSource(name string) bool {
	_, ok := f.configs[name]
	return ok
}

func (f *pFactory) IsCached(name string) bool {
	config, ok := f.configs[name]
	if !ok {
		return false
	}
	return !config.NoCached
}

// FTile resolves the named source and reads the tile from it.
func (f *pFactory) FTile(tile model.ServeTile) (io.ReadCloser, error) {
	s, err := do.InvokeNamed[Service](f.inj, tile.Source)
	if err != nil {
		return nil, errors.Wrapf(tpk.ErrNotFound, "source %s", tile.Source)
	}
	return s.Tile(tile)
}

// Format the tile image format of the named source, empty when unknown.
func (f *pFactory) Format(name string) string {
	s, err := do.InvokeNamed[Service](f.inj, name)
	if err != nil {
		return ""
	}
	return s.Format()
}

func (f *pFactory) Close() error {
	for _, sname := range f.services {
		s, err := do.InvokeNamed[Service](f.inj, sname)
		if err != nil {
			continue
		}
		if err := s.Close(); err != nil {
			f.log.Errorf("error closing source %s: %v", sname, err)
		}
	}
	return nil
}
