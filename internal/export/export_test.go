package export

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willie68/go_tpkutils/internal/mbtiles"
	"github.com/willie68/go_tpkutils/internal/tpk"
	"github.com/willie68/go_tpkutils/internal/tpk/tpktest"
	"github.com/willie68/go_tpkutils/internal/utils/measurement"
)

func testExporter() *Exporter {
	return NewExporter(measurement.New(false))
}

func writePackage(t *testing.T, spec tpktest.Spec) *tpk.TPK {
	t.Helper()
	fn := filepath.Join(t.TempDir(), "test.tpk")
	require.NoError(t, tpktest.Write(fn, spec))
	p, err := tpk.Open(fn)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func defaultTiles() []tpktest.Tile {
	return []tpktest.Tile{
		{Zoom: 0, Col: 0, Row: 0, Data: []byte("z0")},
		{Zoom: 1, Col: 0, Row: 1, Data: []byte("z1a")},
		{Zoom: 1, Col: 1, Row: 0, Data: []byte("z1b")},
		{Zoom: 2, Col: 2, Row: 1, Data: []byte("z2")},
	}
}

// flipped the xyz row for a native row at the given zoom.
func flipped(zoom, row int) int {
	return (1 << zoom) - 1 - row
}

func TestExportMBTiles(t *testing.T) {
	ast := assert.New(t)
	p := writePackage(t, tpktest.Spec{Tiles: defaultTiles()})

	fn := filepath.Join(t.TempDir(), "out.mbtiles")
	ast.NoError(testExporter().ToMBTiles(p, fn, MBTilesOptions{}))

	db, err := mbtiles.Open(fn, "r")
	ast.NoError(err)
	defer db.Close()

	for _, tile := range defaultTiles() {
		data, err := db.TileData(tile.Zoom, tile.Col, flipped(tile.Zoom, tile.Row))
		ast.NoError(err)
		ast.Equal(tile.Data, data)
	}

	meta, err := db.Metadata()
	ast.NoError(err)
	ast.Equal("testpackage", meta["name"])
	ast.Equal("package summary", meta["description"])
	ast.Equal("1.0.0", meta["version"])
	ast.Equal("overlay", meta["type"])
	ast.Equal("png", meta["format"])
	ast.Equal("0", meta["minzoom"])
	ast.Equal("2", meta["maxzoom"])
	ast.Equal("-179.230000,-14.600000,179.860000,71.440000", meta["bounds"])
	ast.Equal(fmt.Sprintf("%f,%f,%d", -179.23+(179.86+179.23)/2.0, -14.60+(71.44+14.60)/2.0, 1), meta["center"])
	ast.Equal("", meta["legend"])
}

func TestExportMBTilesZoomFilter(t *testing.T) {
	ast := assert.New(t)
	p := writePackage(t, tpktest.Spec{Tiles: defaultTiles()})

	fn := filepath.Join(t.TempDir(), "out.mbtiles")
	ast.NoError(testExporter().ToMBTiles(p, fn, MBTilesOptions{Zoom: []int{0, 1}}))

	db, err := mbtiles.Open(fn, "r")
	ast.NoError(err)
	defer db.Close()

	zooms, err := db.ZoomLevels()
	ast.NoError(err)
	ast.Equal([]int{0, 1}, zooms)

	meta, err := db.Metadata()
	ast.NoError(err)
	ast.Equal("0", meta["minzoom"])
	ast.Equal("1", meta["maxzoom"])
}

func TestExportMBTilesAddsSuffix(t *testing.T) {
	ast := assert.New(t)
	p := writePackage(t, tpktest.Spec{Tiles: defaultTiles()})

	fn := filepath.Join(t.TempDir(), "out")
	ast.NoError(testExporter().ToMBTiles(p, fn, MBTilesOptions{}))
	ast.FileExists(fn + ".mbtiles")
}

func TestExportMBTilesJPEGFormat(t *testing.T) {
	ast := assert.New(t)
	p := writePackage(t, tpktest.Spec{Format: "JPEG", Tiles: defaultTiles()})

	fn := filepath.Join(t.TempDir(), "out.mbtiles")
	ast.NoError(testExporter().ToMBTiles(p, fn, MBTilesOptions{}))

	db, err := mbtiles.Open(fn, "r")
	ast.NoError(err)
	defer db.Close()

	meta, err := db.Metadata()
	ast.NoError(err)
	ast.Equal("jpg", meta["format"])
}

func TestExportMBTilesMixedRejected(t *testing.T) {
	ast := assert.New(t)
	p := writePackage(t, tpktest.Spec{Format: "MIXED", Tiles: defaultTiles()})

	fn := filepath.Join(t.TempDir(), "out.mbtiles")
	err := testExporter().ToMBTiles(p, fn, MBTilesOptions{})
	ast.ErrorIs(err, tpk.ErrUnsupportedFormat)
	ast.NoFileExists(fn)
}

func TestExportMBTilesLegend(t *testing.T) {
	ast := assert.New(t)
	p := writePackage(t, tpktest.Spec{Legend: true, Tiles: defaultTiles()})

	fn := filepath.Join(t.TempDir(), "out.mbtiles")
	ast.NoError(testExporter().ToMBTiles(p, fn, MBTilesOptions{}))

	db, err := mbtiles.Open(fn, "r")
	ast.NoError(err)
	defer db.Close()

	meta, err := db.Metadata()
	ast.NoError(err)
	ast.Contains(meta["legend"], "legend label")
	ast.Contains(meta["legend"], "a, b")
}

func TestExportMBTilesEmptyExport(t *testing.T) {
	ast := assert.New(t)
	p := writePackage(t, tpktest.Spec{Tiles: defaultTiles()})

	fn := filepath.Join(t.TempDir(), "out.mbtiles")
	// zoom 3 has no tiles in the fixture
	ast.NoError(testExporter().ToMBTiles(p, fn, MBTilesOptions{Zoom: []int{3}}))

	db, err := mbtiles.Open(fn, "r")
	ast.NoError(err)
	defer db.Close()

	meta, err := db.Metadata()
	ast.NoError(err)
	ast.NotContains(meta, "minzoom")
	ast.NotContains(meta, "maxzoom")
	ast.NotContains(meta, "center")
	ast.Equal("-179.230000,-14.600000,179.860000,71.440000", meta["bounds"])
}

func TestExportMBTilesTileBounds(t *testing.T) {
	ast := assert.New(t)
	p := writePackage(t, tpktest.Spec{Tiles: defaultTiles()})

	fn := filepath.Join(t.TempDir(), "out.mbtiles")
	ast.NoError(testExporter().ToMBTiles(p, fn, MBTilesOptions{TileBounds: true}))

	db, err := mbtiles.Open(fn, "r")
	ast.NoError(err)
	defer db.Close()

	meta, err := db.Metadata()
	ast.NoError(err)
	ast.NotEqual("-179.230000,-14.600000,179.860000,71.440000", meta["bounds"])

	// the only zoom 2 tile is column 2, row 1, covering 0 to 90 degrees
	// east on the southern half of the map
	var left, bottom, right, top float64
	_, err = fmt.Sscanf(meta["bounds"], "%f,%f,%f,%f", &left, &bottom, &right, &top)
	ast.NoError(err)
	ast.InDelta(0.0, left, 1e-6)
	ast.InDelta(90.0, right, 1e-6)
	ast.InDelta(0.0, top, 1e-6)
	ast.Less(bottom, top)
}

func TestExportDiskSchemes(t *testing.T) {
	ast := assert.New(t)
	p := writePackage(t, tpktest.Spec{Tiles: defaultTiles()})

	tt := []struct {
		scheme string
		flip   bool
	}{
		{scheme: "arcgis", flip: false},
		{scheme: "", flip: false},
		{scheme: "xyz", flip: true},
	}
	for _, td := range tt {
		dir := filepath.Join(t.TempDir(), "tiles")
		ast.NoError(testExporter().ToDisk(p, dir, DiskOptions{Scheme: td.scheme}))

		for _, tile := range defaultTiles() {
			y := tile.Row
			if td.flip {
				y = flipped(tile.Zoom, tile.Row)
			}
			fn := filepath.Join(dir, strconv.Itoa(tile.Zoom), strconv.Itoa(tile.Col), fmt.Sprintf("%d.png", y))
			data, err := os.ReadFile(fn)
			ast.NoError(err, "scheme %s: %s", td.scheme, fn)
			ast.Equal(tile.Data, data)
		}
	}
}

func TestExportDiskPathFormat(t *testing.T) {
	ast := assert.New(t)
	p := writePackage(t, tpktest.Spec{Tiles: defaultTiles()})

	dir := filepath.Join(t.TempDir(), "tiles")
	opts := DiskOptions{PathFormat: "level_{z}/{x}_{y}.{ext}"}
	ast.NoError(testExporter().ToDisk(p, dir, opts))
	ast.FileExists(filepath.Join(dir, "level_0", "0_0.png"))

	err := testExporter().ToDisk(p, filepath.Join(t.TempDir(), "t2"), DiskOptions{PathFormat: "{z}/{x}.png"})
	ast.ErrorIs(err, tpk.ErrValidation)
}

func TestExportDiskBadScheme(t *testing.T) {
	ast := assert.New(t)
	p := writePackage(t, tpktest.Spec{Tiles: defaultTiles()})

	err := testExporter().ToDisk(p, filepath.Join(t.TempDir(), "tiles"), DiskOptions{Scheme: "tms"})
	ast.ErrorIs(err, tpk.ErrValidation)
}

func TestExportDiskAlreadyExists(t *testing.T) {
	ast := assert.New(t)
	p := writePackage(t, tpktest.Spec{Tiles: defaultTiles()})

	dir := t.TempDir()
	fn := filepath.Join(dir, "keep.txt")
	ast.NoError(os.WriteFile(fn, []byte("keep"), 0o644))

	err := testExporter().ToDisk(p, dir, DiskOptions{})
	ast.ErrorIs(err, tpk.ErrAlreadyExists)

	// nothing was written next to the existing content
	entries, err := os.ReadDir(dir)
	ast.NoError(err)
	ast.Len(entries, 1)
}

func TestExportDiskMixedRejected(t *testing.T) {
	ast := assert.New(t)
	p := writePackage(t, tpktest.Spec{Format: "MIXED", Tiles: defaultTiles()})

	dir := filepath.Join(t.TempDir(), "tiles")
	err := testExporter().ToDisk(p, dir, DiskOptions{})
	ast.ErrorIs(err, tpk.ErrUnsupportedFormat)
	ast.NoDirExists(dir)
}

// markEmptyTiles treats the given payload as a known blank tile for the
// duration of the test.
func markEmptyTiles(t *testing.T, payload []byte) {
	t.Helper()
	old := isEmptyTile
	isEmptyTile = func(data []byte) bool {
		return bytes.Equal(data, payload)
	}
	t.Cleanup(func() { isEmptyTile = old })
}

func TestExportMBTilesDropEmpty(t *testing.T) {
	ast := assert.New(t)
	blank := []byte("blank tile payload")
	markEmptyTiles(t, blank)

	tiles := defaultTiles()
	// blank out the only zoom 2 tile
	tiles[3].Data = blank
	p := writePackage(t, tpktest.Spec{Tiles: tiles})

	fn := filepath.Join(t.TempDir(), "out.mbtiles")
	ast.NoError(testExporter().ToMBTiles(p, fn, MBTilesOptions{DropEmpty: true}))

	db, err := mbtiles.Open(fn, "r")
	ast.NoError(err)
	defer db.Close()

	data, err := db.TileData(2, 2, flipped(2, 1))
	ast.NoError(err)
	ast.Nil(data)

	zooms, err := db.ZoomLevels()
	ast.NoError(err)
	ast.Equal([]int{0, 1}, zooms)

	// the written zoom range excludes the dropped level
	meta, err := db.Metadata()
	ast.NoError(err)
	ast.Equal("0", meta["minzoom"])
	ast.Equal("1", meta["maxzoom"])
}

func TestExportDiskDropEmpty(t *testing.T) {
	ast := assert.New(t)
	blank := []byte("blank tile payload")
	markEmptyTiles(t, blank)

	tiles := defaultTiles()
	tiles[0].Data = blank
	p := writePackage(t, tpktest.Spec{Tiles: tiles})

	dir := filepath.Join(t.TempDir(), "tiles")
	ast.NoError(testExporter().ToDisk(p, dir, DiskOptions{DropEmpty: true}))

	ast.NoFileExists(filepath.Join(dir, "0", "0", "0.png"))
	ast.FileExists(filepath.Join(dir, "1", "0", "1.png"))
}

func TestTileExtension(t *testing.T) {
	ast := assert.New(t)
	tt := []struct {
		format string
		want   string
	}{
		{"PNG", "png"},
		{"PNG8", "png"},
		{"JPEG", "jpg"},
		{"jpg", "jpg"},
		{"MIXED", "mix"},
	}
	for _, td := range tt {
		ast.Equal(td.want, tileExtension(td.format))
	}
}
