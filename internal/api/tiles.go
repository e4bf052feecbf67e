package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/samber/do/v2"

	"github.com/willie68/go_tpkutils/internal/logging"
	"github.com/willie68/go_tpkutils/internal/model"
	"github.com/willie68/go_tpkutils/internal/tilecache"
	"github.com/willie68/go_tpkutils/internal/tpk"
	"github.com/willie68/go_tpkutils/internal/utils/measurement"
	"github.com/willie68/go_tpkutils/pkg/fileutils"
)

type sourceService interface {
	HasSource(name string) bool
	IsCached(name string) bool
	FTile(tile model.ServeTile) (io.ReadCloser, error)
	Format(name string) string
}

type TileHandler struct {
	log     *logging.Logger
	sources sourceService
	cache   tilecache.TileCache
	metrics *measurement.Service
}

func NewTileHandler(inj do.Injector) *chi.Mux {
	th := &TileHandler{
		log:     logging.New().WithName("api"),
		sources: do.MustInvokeAs[sourceService](inj),
		cache:   do.MustInvokeAs[tilecache.TileCache](inj),
		metrics: do.MustInvoke[*measurement.Service](inj),
	}
	router := chi.NewRouter()
	router.Get("/{source}/xyz/{z}/{x}/{y}", th.GetTileHandler())
	return router
}

func (h *TileHandler) GetTileHandler() http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		td := h.metrics.Start("getTile")
		defer td.Stop()

		// URL: /{source}/xyz/{z}/{x}/{y}.png
		h.log.Debugf("path: %s", r.URL.Path)
		tile, err := h.getRequestParameter(r)
		if err != nil {
			http.Error(w, fmt.Sprintf("Path error: %s", err.Error()), http.StatusBadRequest)
			return
		}

		ct := contentType(h.sources.Format(tile.Source))

		if data, ok := h.cache.Tile(tile); ok {
			h.log.Debugf("tile found in cache: %s", tile.String())
			w.Header().Set("Content-Type", ct)
			w.Write(data)
			return
		}

		rd, err := h.sources.FTile(tile)
		if err != nil {
			if errors.Is(err, tpk.ErrNotFound) {
				http.Error(w, "tile not found", http.StatusNotFound)
				return
			}
			h.log.Errorf("source error: %v", err)
			http.Error(w, fmt.Sprintf("Source error: %s", err.Error()), http.StatusInternalServerError)
			return
		}
		defer rd.Close()

		w.Header().Set("Content-Type", ct)
		if !h.cache.IsActive() || !h.sources.IsCached(tile.Source) {
			io.Copy(w, rd)
			return
		}
		data, err := io.ReadAll(rd)
		if err != nil {
			http.Error(w, "error reading tile data", http.StatusInternalServerError)
			return
		}
		if err := h.cache.Save(tile, data); err != nil {
			h.log.Errorf("error writing to the cache: %v", err)
		}
		w.Write(data)
	})
}

func (h *TileHandler) getRequestParameter(r *http.Request) (tile model.ServeTile, err error) {
	tile.Source = chi.URLParam(r, "source")
	zs := chi.URLParam(r, "z")
	xs := chi.URLParam(r, "x")
	ys := chi.URLParam(r, "y")

	tile.Z, err = strconv.Atoi(zs)
	if err != nil {
		return tile, errors.New("error in zoom level")
	}
	tile.X, err = strconv.Atoi(xs)
	if err != nil {
		return tile, errors.New("error in x axis")
	}
	tile.Y, err = strconv.Atoi(fileutils.FileNameWithoutExtension(ys))
	if err != nil {
		return tile, errors.New("error in y axis")
	}

	if !h.sources.HasSource(tile.Source) {
		return tile, errors.New("unknown source")
	}
	if !isValidXYZCoord(tile.X, tile.Y, tile.Z) {
		return tile, errors.New("invalid tile coordinates")
	}
	return tile, nil
}

// Checks if the given xyz coordinates are valid for the given zoom level.
func isValidXYZCoord(x, y, zoom int) bool {
	if zoom < 0 {
		return false
	}
	max := 1 << zoom // 2^zoom
	if x < 0 || x >= max {
		return false
	}
	if y < 0 || y >= max {
		return false
	}
	return true
}

func contentType(format string) string {
	switch strings.ToLower(format) {
	case "jpg", "jpeg":
		return "image/jpeg"
	default:
		return "image/png"
	}
}
