package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
port: 9090
sources:
  world:
    type: tpk
    path: /data/world.tpk
  exported:
    type: mbtiles
    path: /data/world.mbtiles
    nocache: true
logging:
  level: debug
cache:
  active: true
  maxage: 12
`

func TestLoad(t *testing.T) {
	ast := assert.New(t)
	fn := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(fn, []byte(testConfig), 0o644))

	require.NoError(t, Load(fn))

	ast.Equal(9090, Port())
	ast.Equal("debug", Logging().Level)
	ast.True(Cache().Active)
	ast.Equal(12, Cache().MaxAge)

	sources := config.GetSourcesConfig()
	ast.Len(sources, 2)
	ast.Equal("tpk", sources["world"].Type)
	ast.Equal("/data/world.tpk", sources["world"].Path)
	ast.Equal("mbtiles", sources["exported"].Type)
	ast.True(sources["exported"].NoCached)
}

func TestLoadMissingFile(t *testing.T) {
	ast := assert.New(t)
	ast.Error(Load(filepath.Join(t.TempDir(), "nosuch.yaml")))
}

func TestSetPort(t *testing.T) {
	ast := assert.New(t)
	fn := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(fn, []byte(testConfig), 0o644))
	require.NoError(t, Load(fn))

	SetPort(0)
	ast.Equal(9090, Port())
	SetPort(8080)
	ast.Equal(8080, Port())
}

func TestYAML(t *testing.T) {
	ast := assert.New(t)
	fn := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(fn, []byte(testConfig), 0o644))
	require.NoError(t, Load(fn))

	ys := YAML()
	ast.Contains(ys, "port:")
	ast.Contains(ys, "world:")
}
