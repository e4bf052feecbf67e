package provider

import (
	"bytes"
	"io"

	"github.com/pkg/errors"

	"github.com/willie68/go_tpkutils/internal/logging"
	"github.com/willie68/go_tpkutils/internal/model"
	"github.com/willie68/go_tpkutils/internal/tpk"
)

// tpkProvider serves tiles directly out of a tile package via random
// access, no export needed.
type tpkProvider struct {
	name string
	log  *logging.Logger
	pkg  *tpk.TPK
}

func NewTPKProvider(name string, config Config) (*tpkProvider, error) {
	p, err := tpk.Open(config.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "open tile package %s", config.Path)
	}
	log := logging.New().WithName("tpk: " + name)
	log.Infof("serving %s, format %s, zoom levels %v", config.Path, p.Meta.Format, p.ZoomLevels())
	return &tpkProvider{
		name: name,
		log:  log,
		pkg:  p,
	}, nil
}

func (s *tpkProvider) Tile(tile model.ServeTile) (io.ReadCloser, error) {
	// packages number rows from the south, xyz requests from the north
	row := (1 << tile.Z) - 1 - tile.Y
	data, err := s.pkg.ReadTile(tile.Z, tile.X, row)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *tpkProvider) Format() string {
	return s.pkg.Meta.Format
}

func (s *tpkProvider) Close() error {
	return s.pkg.Close()
}
