package model

import "fmt"

// Tile is one raster tile with its web map coordinates. Data holds the raw
// image bytes (PNG or JPEG) and is passed through unmodified.
type Tile struct {
	Z    int
	X    int
	Y    int
	Data []byte
}

func (t *Tile) String() string {
	return fmt.Sprintf("Z:%d, X:%d, Y:%d, %d bytes", t.Z, t.X, t.Y, len(t.Data))
}

// ServeTile addresses a tile of a named source on the preview server.
type ServeTile struct {
	Source string
	Z      int
	X      int
	Y      int
}

func (t *ServeTile) String() string {
	return fmt.Sprintf("Source: %s, Z:%d, X:%d, Y:%d", t.Source, t.Z, t.X, t.Y)
}
