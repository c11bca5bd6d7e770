package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close() //nolint:errcheck
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestSources_OpenLocal(t *testing.T) {
	path := writeTestFile(t, "seed.json", "[]")
	s := New(Options{})

	rc, err := s.Open(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "[]", readAll(t, rc))

	rc, err = s.Open(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Equal(t, "[]", readAll(t, rc))
}

func TestSources_OpenErrors(t *testing.T) {
	s := New(Options{})

	_, err := s.Open(context.Background(), "")
	assert.Error(t, err)

	_, err = s.Open(context.Background(), "s3://bucket/seed.json")
	assert.ErrorContains(t, err, `unsupported scheme "s3"`)

	_, err = s.Open(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestSources_OpenHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("type,lat,lng\n"))
	}))
	defer srv.Close()

	s := New(Options{HTTP: HTTPOptions{RatePerHost: 100}})
	rc, err := s.Open(context.Background(), srv.URL+"/seed.csv")
	require.NoError(t, err)
	assert.Equal(t, "type,lat,lng\n", readAll(t, rc))
}

func TestSources_Local(t *testing.T) {
	s := New(Options{HTTP: HTTPOptions{RatePerHost: 100}})

	path := writeTestFile(t, "seed.xlsx", "x")
	got, err := s.Local(context.Background(), path, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, path, got)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("PK"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	got, err = s.Local(context.Background(), srv.URL+"/exports/zones.zip?token=1", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "zones.zip"), got)
	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "PK", string(data))
}

func TestName(t *testing.T) {
	assert.Equal(t, "seed.csv", Name("/data/seed.csv"))
	assert.Equal(t, "seed.csv", Name("https://example.com/files/seed.csv?x=1"))
	assert.Equal(t, "seed.zip", Name("ftp://ftp.example.com/pub/seed.zip"))
	assert.Equal(t, "download", Name("https://example.com/"))
}
