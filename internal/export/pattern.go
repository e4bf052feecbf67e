package export

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/willie68/go_tpkutils/internal/model"
	"github.com/willie68/go_tpkutils/internal/tpk"
)

// DefaultPathFormat the default relative tile path layout on disk.
const DefaultPathFormat = "{z}/{x}/{y}.{ext}"

func validatePattern(pattern string) error {
	for _, p := range []string{"{z}", "{x}", "{y}"} {
		if !strings.Contains(pattern, p) {
			return errors.Wrapf(tpk.ErrValidation, "path format: placeholder %s not found", p)
		}
	}
	return nil
}

func formatPattern(pattern string, t model.Tile, ext string) string {
	result := pattern
	result = strings.ReplaceAll(result, "{z}", strconv.Itoa(t.Z))
	result = strings.ReplaceAll(result, "{x}", strconv.Itoa(t.X))
	result = strings.ReplaceAll(result, "{y}", strconv.Itoa(t.Y))
	result = strings.ReplaceAll(result, "{ext}", ext)
	return result
}
