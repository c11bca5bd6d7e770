// Package fetcher opens occurrence sources from local paths, HTTP and FTP and
// parses the tabular and document formats they come in.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Fetcher downloads one remote resource.
type Fetcher interface {
	// Download fetches the URL and returns the body. The caller closes it.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// Options configures the remote fetchers.
type Options struct {
	HTTP HTTPOptions
	FTP  FTPOptions
}

// Sources resolves a location (a path, file://, http(s):// or ftp:// URL) to
// its content.
type Sources struct {
	http Fetcher
	ftp  Fetcher
}

// New creates Sources backed by an HTTPFetcher and an FTPFetcher.
func New(opts Options) *Sources {
	return &Sources{
		http: NewHTTPFetcher(opts.HTTP),
		ftp:  NewFTPFetcher(opts.FTP),
	}
}

// Open returns a reader for location.
func (s *Sources) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	scheme, target, err := splitLocation(location)
	if err != nil {
		return nil, err
	}
	switch scheme {
	case "":
		f, err := os.Open(target)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: open %s", target)
		}
		return f, nil
	case "http", "https":
		return s.http.Download(ctx, location)
	case "ftp":
		return s.ftp.Download(ctx, location)
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme %q", scheme)
	}
}

// Local returns a filesystem path holding the content of location. Local
// paths are returned as is; remote content is downloaded into dir.
func (s *Sources) Local(ctx context.Context, location, dir string) (string, error) {
	scheme, target, err := splitLocation(location)
	if err != nil {
		return "", err
	}
	if scheme == "" {
		return target, nil
	}

	rc, err := s.Open(ctx, location)
	if err != nil {
		return "", err
	}
	defer rc.Close() //nolint:errcheck

	dest := filepath.Join(dir, Name(location))
	out, err := os.Create(dest)
	if err != nil {
		return "", eris.Wrap(err, "fetcher: create file")
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, rc); err != nil {
		return "", eris.Wrapf(err, "fetcher: download %s", location)
	}
	return dest, nil
}

// Name returns the file name at the end of location, used to pick a format.
func Name(location string) string {
	if u, err := url.Parse(location); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		if base := path.Base(u.Path); base != "." && base != "/" {
			return base
		}
		return "download"
	}
	return filepath.Base(location)
}

// splitLocation returns the lower-cased scheme (empty for local files) and
// the target path or URL. Single-letter schemes are Windows drive letters.
func splitLocation(location string) (string, string, error) {
	if location == "" {
		return "", "", eris.New("fetcher: empty location")
	}
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		return "", location, nil
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme == "file" {
		return "", u.Path, nil
	}
	return scheme, location, nil
}
