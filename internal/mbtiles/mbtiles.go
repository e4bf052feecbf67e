// Package mbtiles writes tilesets in the mbtiles 1.1 format, a sqlite
// database with a tiles and a metadata table.
package mbtiles

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/willie68/go_tpkutils/internal/logging"
	"github.com/willie68/go_tpkutils/internal/model"
	"github.com/willie68/go_tpkutils/internal/tpk"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE metadata (name TEXT, value TEXT);
CREATE TABLE tiles (
	zoom_level INTEGER,
	tile_column INTEGER,
	tile_row INTEGER,
	tile_data BLOB
);
CREATE UNIQUE INDEX tile_index ON tiles (zoom_level, tile_column, tile_row);
`

// DB is an open mbtiles file.
type DB struct {
	log *logging.Logger
	db  *sql.DB
}

// Open opens an mbtiles file. Mode "w" truncates an existing file and
// initializes the schema, mode "r" opens an existing file read only.
func Open(path, mode string) (*DB, error) {
	log := logging.New().WithName("mbtiles")

	switch mode {
	case "r":
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Wrapf(tpk.ErrNotFound, "mbtiles file %s", path)
		}
		db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
		if err != nil {
			return nil, errors.Wrapf(err, "open mbtiles %s", path)
		}
		return &DB{log: log, db: db}, nil
	case "w":
		if _, err := os.Stat(path); err == nil {
			if err := os.Remove(path); err != nil {
				return nil, errors.Wrapf(err, "truncate mbtiles %s", path)
			}
		}
		db, err := sql.Open("sqlite", path)
		if err != nil {
			return nil, errors.Wrapf(err, "create mbtiles %s", path)
		}
		if _, err := db.Exec(schema); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "initialize mbtiles %s", path)
		}
		return &DB{log: log, db: db}, nil
	default:
		return nil, errors.Wrapf(tpk.ErrValidation, "mode must be r or w, got %q", mode)
	}
}

// AddTile inserts a single tile, coordinates are stored as given.
func (d *DB) AddTile(z, x, y int, data []byte) error {
	_, err := d.db.Exec(
		"INSERT INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)",
		z, x, y, data)
	return errors.Wrap(err, "insert tile")
}

// AddTiles inserts a batch of tiles in one transaction. A failure rolls
// the whole batch back, previously committed batches stay intact.
func (d *DB) AddTiles(tiles []model.Tile) error {
	if len(tiles) == 0 {
		return nil
	}
	tx, err := d.db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin tile batch")
	}
	stmt, err := tx.Prepare("INSERT INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "prepare tile batch")
	}
	for _, t := range tiles {
		if _, err := stmt.Exec(t.Z, t.X, t.Y, t.Data); err != nil {
			stmt.Close()
			tx.Rollback()
			return errors.Wrapf(err, "insert tile %s", t.String())
		}
	}
	stmt.Close()
	return errors.Wrap(tx.Commit(), "commit tile batch")
}

// SetMetadata replaces the metadata table content.
func (d *DB) SetMetadata(meta map[string]string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin metadata")
	}
	if _, err := tx.Exec("DELETE FROM metadata"); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "clear metadata")
	}
	for k, v := range meta {
		if _, err := tx.Exec("INSERT INTO metadata (name, value) VALUES (?, ?)", k, v); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "insert metadata %s", k)
		}
	}
	return errors.Wrap(tx.Commit(), "commit metadata")
}

// Metadata reads the metadata table back into a map.
func (d *DB) Metadata() (map[string]string, error) {
	rows, err := d.db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return nil, errors.Wrap(err, "read metadata")
	}
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, errors.Wrap(err, "read metadata")
		}
		meta[name] = value
	}
	return meta, rows.Err()
}

// TileData reads a single tile back, nil without error when absent.
func (d *DB) TileData(z, x, y int) ([]byte, error) {
	var data []byte
	err := d.db.QueryRow(
		"SELECT tile_data FROM tiles WHERE zoom_level = ? AND tile_column = ? AND tile_row = ?",
		z, x, y).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return data, errors.Wrap(err, "read tile")
}

// ZoomLevels the distinct zoom levels present, ascending.
func (d *DB) ZoomLevels() ([]int, error) {
	rows, err := d.db.Query("SELECT DISTINCT zoom_level FROM tiles ORDER BY zoom_level")
	if err != nil {
		return nil, errors.Wrap(err, "read zoom levels")
	}
	defer rows.Close()

	var zooms []int
	for rows.Next() {
		var z int
		if err := rows.Scan(&z); err != nil {
			return nil, errors.Wrap(err, "read zoom levels")
		}
		zooms = append(zooms, z)
	}
	return zooms, rows.Err()
}

func (d *DB) Close() error {
	return d.db.Close()
}
