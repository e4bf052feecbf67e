// Package tpktest builds small synthetic tile packages for tests.
package tpktest

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

const (
	bundleDim       = 128
	tilesPerBundle  = bundleDim * bundleDim
	indexHeaderSize = 16
	indexEntrySize  = 5

	worldCircumference = 40075016.69
)

// Tile one tile to place into the package, coordinates in the native
// ArcGIS scheme (row 0 at the south).
type Tile struct {
	Zoom int
	Col  int
	Row  int
	Data []byte
}

// Spec describes the synthetic package to build. Zero values fall back to
// a single layer PNG package named "testlayer".
type Spec struct {
	Root     string
	Format   string
	TileSize int
	Zooms    []int // ordinal level ids are assigned 0..n-1
	Bounds   [4]float64
	Tiles    []Tile

	Legend        bool
	OmitTags      bool
	OmitItemInfo  bool
	OmitMapServer bool
	BrokenConf    bool
	// TruncateBundles cuts every bundle blob short to provoke decode errors.
	TruncateBundles bool
}

func (s *Spec) defaults() {
	if s.Root == "" {
		s.Root = "v101/testlayer"
	}
	if s.Format == "" {
		s.Format = "PNG"
	}
	if s.TileSize == 0 {
		s.TileSize = 256
	}
	if s.Zooms == nil {
		s.Zooms = []int{0, 1, 2, 3}
	}
	if s.Bounds == [4]float64{} {
		s.Bounds = [4]float64{-179.23, -14.60, 179.86, 71.44}
	}
}

// Write builds the package and writes it to path.
func Write(path string, spec Spec) error {
	spec.defaults()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	add := func(name string, data []byte) error {
		w, err := zw.Create(name)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}

	if err := add(spec.Root+"/conf.xml", confXML(spec)); err != nil {
		return err
	}
	if !spec.OmitItemInfo {
		if err := add("esriinfo/iteminfo.xml", itemInfoXML(spec)); err != nil {
			return err
		}
	}
	if !spec.OmitMapServer {
		data, err := mapServerJSON(spec)
		if err != nil {
			return err
		}
		if err := add("servicedescriptions/mapserver/mapserver.json", data); err != nil {
			return err
		}
	}

	bundles := buildBundles(spec)
	names := make([]string, 0, len(bundles))
	for name := range bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b := bundles[name]
		blob := b.blob
		if spec.TruncateBundles && len(blob) > 8 {
			blob = blob[:8]
		}
		if err := add(name+".bundlx", b.index); err != nil {
			return err
		}
		if err := add(name+".bundle", blob); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

type bundle struct {
	index []byte
	blob  []byte
}

// buildBundles groups the tiles into bundles and lays out index and blob.
// Empty cells point at a shared zero length record at blob offset 0.
func buildBundles(spec Spec) map[string]*bundle {
	type key struct{ lod, rOff, cOff int }

	lodForZoom := make(map[int]int, len(spec.Zooms))
	for i, z := range spec.Zooms {
		lodForZoom[z] = i
	}

	offsets := make(map[key][]uint64)
	blobs := make(map[key]*bytes.Buffer)
	for _, t := range spec.Tiles {
		k := key{
			lod:  lodForZoom[t.Zoom],
			rOff: (t.Row / bundleDim) * bundleDim,
			cOff: (t.Col / bundleDim) * bundleDim,
		}
		if _, ok := blobs[k]; !ok {
			blob := &bytes.Buffer{}
			blob.Write([]byte{0, 0, 0, 0}) // the shared empty record
			blobs[k] = blob
			offsets[k] = make([]uint64, tilesPerBundle)
		}
		// column from the outer stride, row from the inner one
		i := (t.Col-k.cOff)*bundleDim + (t.Row - k.rOff)
		blob := blobs[k]
		offsets[k][i] = uint64(blob.Len())
		var lenBuf [4]byte
		for j := range lenBuf {
			lenBuf[j] = byte(len(t.Data) >> (8 * j))
		}
		blob.Write(lenBuf[:])
		blob.Write(t.Data)
	}

	bundles := make(map[string]*bundle, len(blobs))
	for k, blob := range blobs {
		index := make([]byte, indexHeaderSize, indexHeaderSize+tilesPerBundle*indexEntrySize)
		for _, off := range offsets[k] {
			var e [indexEntrySize]byte
			for j := range e {
				e[j] = byte(off >> (8 * uint(j)))
			}
			index = append(index, e[:]...)
		}
		name := fmt.Sprintf("%s/_alllayers/L%02d/R%04xC%04x", spec.Root, k.lod, k.rOff, k.cOff)
		bundles[name] = &bundle{index: index, blob: blob.Bytes()}
	}
	return bundles
}

// Resolution the stored resolution producing the given web zoom level for
// the given tile size.
func Resolution(zoom, tileSize int) float64 {
	return worldCircumference / (float64(uint64(1)<<uint(zoom)) * float64(tileSize))
}

func confXML(spec Spec) []byte {
	var sb strings.Builder
	sb.WriteString("<CacheInfo>\n <TileCacheInfo>\n")
	fmt.Fprintf(&sb, "  <TileCols>%d</TileCols>\n  <TileRows>%d</TileRows>\n", spec.TileSize, spec.TileSize)
	sb.WriteString("  <LODInfos>\n")
	for i, z := range spec.Zooms {
		res := strconv.FormatFloat(Resolution(z, spec.TileSize), 'f', -1, 64)
		fmt.Fprintf(&sb, "   <LODInfo><LevelID>%d</LevelID><Resolution>%s</Resolution></LODInfo>\n", i, res)
	}
	sb.WriteString("  </LODInfos>\n </TileCacheInfo>\n <TileImageInfo>\n")
	fmt.Fprintf(&sb, "  <CacheTileFormat>%s</CacheTileFormat>\n", spec.Format)
	sb.WriteString(" </TileImageInfo>\n</CacheInfo>\n")
	if spec.BrokenConf {
		return []byte("<CacheInfo><TileCacheInfo>")
	}
	return []byte(sb.String())
}

func itemInfoXML(spec Spec) []byte {
	var sb strings.Builder
	sb.WriteString("<ESRI_ItemInformation>\n")
	sb.WriteString(" <title>testpackage</title>\n")
	sb.WriteString(" <summary>package summary</summary>\n")
	if !spec.OmitTags {
		sb.WriteString(" <tags>package tags</tags>\n")
	}
	sb.WriteString(" <description>map description</description>\n")
	sb.WriteString(" <accessinformation>map credits</accessinformation>\n")
	sb.WriteString(" <licenseinfo></licenseinfo>\n")
	sb.WriteString("</ESRI_ItemInformation>\n")
	return []byte(sb.String())
}

func mapServerJSON(spec Spec) ([]byte, error) {
	doc := map[string]any{
		"resourceInfo": map[string]any{
			"geoFullExtent": map[string]any{
				"xmin": spec.Bounds[0],
				"ymin": spec.Bounds[1],
				"xmax": spec.Bounds[2],
				"ymax": spec.Bounds[3],
			},
		},
	}
	resources := []any{}
	if spec.Legend {
		resources = append(resources, map[string]any{
			"name": "legend",
			"contents": map[string]any{
				"layers": []any{
					map[string]any{
						"layerName": "testlayer",
						"legend": []any{
							map[string]any{
								"contentType": "image/png",
								"imageData":   "iVBORw0KGgo=",
								"label":       "legend label",
							},
							map[string]any{
								"contentType": "image/png",
								"imageData":   "iVBORw0KGgo=",
								"values":      []string{"a", "b"},
							},
						},
					},
				},
			},
		})
	}
	doc["resources"] = resources
	return json.Marshal(doc)
}
