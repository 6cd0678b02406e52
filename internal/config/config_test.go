package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_missing(t *testing.T) {
	p, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, &Project{}, p)
}

func TestLoad(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte(`
src: source
out: dist
mode: development
port: 4000
allowed_hosts:
  - dev.test
define:
  __API__: '"https://api.example.com"'
`), 0o600))

	p, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, "source", p.SrcDir)
	assert.Equal(t, "dist", p.OutDir)
	assert.Equal(t, "development", p.Mode)
	assert.Equal(t, 4000, p.Port)
	assert.Equal(t, []string{"dev.test"}, p.AllowedHosts)
	assert.Equal(t, `"https://api.example.com"`, p.Define["__API__"])
	assert.Empty(t, p.PublicDir)
}

func TestParse_invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "unknown key", data: "outdir: dist\n"},
		{name: "bad mode", data: "mode: staging\n"},
		{name: "bad port", data: "port: 70000\n"},
		{name: "not yaml", data: "port: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestParse_empty(t *testing.T) {
	p, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, &Project{}, p)
}

func TestResolve_precedence(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte(`
out: dist
port: 4000
host: 0.0.0.0
define:
  A: "1"
  B: "2"
`), 0o600))

	p, err := Resolve(root, Defaults(), Project{
		Port:   5000,
		Define: map[string]string{"B": "3"},
	})
	require.NoError(t, err)

	assert.Equal(t, "src", p.SrcDir)
	assert.Equal(t, "public", p.PublicDir)
	assert.Equal(t, "dist", p.OutDir)
	assert.Equal(t, "0.0.0.0", p.Host)
	assert.Equal(t, 5000, p.Port)
	assert.Equal(t, "production", p.Mode)
	assert.Equal(t, "sass", p.Sass)
	assert.Equal(t, map[string]string{"A": "1", "B": "3"}, p.Define)
}

func TestResolve_invalidFlags(t *testing.T) {
	_, err := Resolve(t.TempDir(), Defaults(), Project{Mode: "fast"})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("EXTPACK_TEST_A=env\nEXTPACK_TEST_B=env\nEXTPACK_TEST_C=env\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"), []byte("EXTPACK_TEST_B=local\n"), 0o600))

	t.Setenv("EXTPACK_TEST_C", "process")
	t.Setenv("EXTPACK_TEST_A", "")
	require.NoError(t, os.Unsetenv("EXTPACK_TEST_A"))
	t.Setenv("EXTPACK_TEST_B", "")
	require.NoError(t, os.Unsetenv("EXTPACK_TEST_B"))

	require.NoError(t, LoadEnv(dir))

	assert.Equal(t, "env", os.Getenv("EXTPACK_TEST_A"))
	assert.Equal(t, "local", os.Getenv("EXTPACK_TEST_B"))
	assert.Equal(t, "process", os.Getenv("EXTPACK_TEST_C"))
}

func TestLoadEnv_none(t *testing.T) {
	require.NoError(t, LoadEnv(t.TempDir()))
}
