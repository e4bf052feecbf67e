package mbtiles

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willie68/go_tpkutils/internal/model"
	"github.com/willie68/go_tpkutils/internal/tpk"
)

func TestOpenModes(t *testing.T) {
	ast := assert.New(t)
	dir := t.TempDir()

	_, err := Open(filepath.Join(dir, "nosuch.mbtiles"), "r")
	ast.ErrorIs(err, tpk.ErrNotFound)

	_, err = Open(filepath.Join(dir, "x.mbtiles"), "a")
	ast.ErrorIs(err, tpk.ErrValidation)

	db, err := Open(filepath.Join(dir, "new.mbtiles"), "w")
	ast.NoError(err)
	ast.NoError(db.Close())
}

func TestWriteTruncatesExisting(t *testing.T) {
	ast := assert.New(t)
	fn := filepath.Join(t.TempDir(), "out.mbtiles")

	db, err := Open(fn, "w")
	require.NoError(t, err)
	ast.NoError(db.AddTile(0, 0, 0, []byte("old")))
	ast.NoError(db.Close())

	db, err = Open(fn, "w")
	require.NoError(t, err)
	defer db.Close()

	data, err := db.TileData(0, 0, 0)
	ast.NoError(err)
	ast.Nil(data)
}

func TestAddTilesBatch(t *testing.T) {
	ast := assert.New(t)
	fn := filepath.Join(t.TempDir(), "out.mbtiles")

	db, err := Open(fn, "w")
	require.NoError(t, err)
	defer db.Close()

	tiles := []model.Tile{
		{Z: 0, X: 0, Y: 0, Data: []byte("a")},
		{Z: 1, X: 0, Y: 1, Data: []byte("b")},
		{Z: 1, X: 1, Y: 0, Data: []byte("c")},
	}
	ast.NoError(db.AddTiles(tiles))
	ast.NoError(db.AddTiles(nil))

	for _, tile := range tiles {
		data, err := db.TileData(tile.Z, tile.X, tile.Y)
		ast.NoError(err)
		ast.Equal(tile.Data, data)
	}

	zooms, err := db.ZoomLevels()
	ast.NoError(err)
	ast.Equal([]int{0, 1}, zooms)
}

func TestAddTilesRollsBackOnConflict(t *testing.T) {
	ast := assert.New(t)
	fn := filepath.Join(t.TempDir(), "out.mbtiles")

	db, err := Open(fn, "w")
	require.NoError(t, err)
	defer db.Close()

	ast.NoError(db.AddTile(0, 0, 0, []byte("first")))

	// second batch violates the unique tile index and must not leave the
	// leading tile behind
	err = db.AddTiles([]model.Tile{
		{Z: 5, X: 1, Y: 1, Data: []byte("new")},
		{Z: 0, X: 0, Y: 0, Data: []byte("dup")},
	})
	ast.Error(err)

	data, err := db.TileData(5, 1, 1)
	ast.NoError(err)
	ast.Nil(data)

	data, err = db.TileData(0, 0, 0)
	ast.NoError(err)
	ast.Equal([]byte("first"), data)
}

func TestMetadataRoundtrip(t *testing.T) {
	ast := assert.New(t)
	fn := filepath.Join(t.TempDir(), "out.mbtiles")

	db, err := Open(fn, "w")
	require.NoError(t, err)
	defer db.Close()

	want := map[string]string{
		"name":   "test",
		"format": "png",
		"bounds": "-180.000000,-85.000000,180.000000,85.000000",
	}
	ast.NoError(db.SetMetadata(want))

	got, err := db.Metadata()
	ast.NoError(err)
	ast.Equal(want, got)

	// a second set replaces, not appends
	ast.NoError(db.SetMetadata(map[string]string{"name": "other"}))
	got, err = db.Metadata()
	ast.NoError(err)
	ast.Equal(map[string]string{"name": "other"}, got)
}
