package provider

import (
	"bytes"
	"io"
	"strconv"

	"github.com/i0tool5/mbtiles-go"
	"github.com/pkg/errors"

	"github.com/willie68/go_tpkutils/internal/logging"
	"github.com/willie68/go_tpkutils/internal/model"
	"github.com/willie68/go_tpkutils/internal/tpk"
)

type mbtilesMeta struct {
	Name    string
	Format  string
	Minzoom int
	Maxzoom int
}

// mbtilesProvider serves tiles out of an mbtiles file. Rows are read as
// requested, matching the row scheme the exporter writes.
type mbtilesProvider struct {
	name string
	log  *logging.Logger
	db   *mbtiles.MBtiles
	meta mbtilesMeta
}

func NewMBTilesProvider(name string, config Config) (*mbtilesProvider, error) {
	log := logging.New().WithName("mbtiles: " + name)
	db, err := mbtiles.Open(config.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "open mbtiles %s", config.Path)
	}
	meta, err := db.ReadMetadata()
	if err != nil {
		log.Errorf("failed to read mbtiles metadata: %v", err)
	}
	s := &mbtilesProvider{
		name: name,
		log:  log,
		db:   db,
	}
	s.parseMetadata(meta)
	log.Infof("serving %s, format %s, zoom %d - %d", config.Path, s.meta.Format, s.meta.Minzoom, s.meta.Maxzoom)
	return s, nil
}

func (s *mbtilesProvider) Tile(tile model.ServeTile) (io.ReadCloser, error) {
	if tile.Z < s.meta.Minzoom || tile.Z > s.meta.Maxzoom {
		return nil, errors.Wrapf(tpk.ErrNotFound, "zoom level %d out of bounds (%d - %d)", tile.Z, s.meta.Minzoom, s.meta.Maxzoom)
	}
	var data []byte
	err := s.db.ReadTile(int64(tile.Z), int64(tile.X), int64(tile.Y), &data)
	if err != nil {
		return nil, errors.Wrapf(err, "read tile %s", tile.String())
	}
	if len(data) == 0 {
		return nil, errors.Wrapf(tpk.ErrNotFound, "tile %s", tile.String())
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *mbtilesProvider) Format() string {
	return s.meta.Format
}

func (s *mbtilesProvider) Close() error {
	s.db.Close()
	return nil
}

func (s *mbtilesProvider) parseMetadata(meta map[string]any) {
	s.meta.Name, _ = meta["name"].(string)
	s.meta.Format, _ = meta["format"].(string)
	s.meta.Maxzoom = 30
	switch v := meta["maxzoom"].(type) {
	case int:
		s.meta.Maxzoom = v
	case string:
		if z, err := strconv.Atoi(v); err == nil {
			s.meta.Maxzoom = z
		}
	}
	switch v := meta["minzoom"].(type) {
	case int:
		s.meta.Minzoom = v
	case string:
		if z, err := strconv.Atoi(v); err == nil {
			s.meta.Minzoom = z
		}
	}
}
