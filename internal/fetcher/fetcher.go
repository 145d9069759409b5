// Package fetcher opens booking sources (local files, HTTP and FTP URLs) and
// parses their CSV, JSON and XLSX payloads into rows.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/rotisserie/eris"
)

// Fetcher downloads a remote resource.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// Options configures the remote fetchers used by Open.
type Options struct {
	HTTP HTTPOptions
	FTP  FTPOptions
}

// Opener resolves a source string to a readable stream.
type Opener struct {
	http Fetcher
	ftp  Fetcher
}

// NewOpener builds an Opener with HTTP and FTP fetchers.
func NewOpener(opts Options) *Opener {
	return &Opener{
		http: NewHTTPFetcher(opts.HTTP),
		ftp:  NewFTPFetcher(opts.FTP),
	}
}

// Open returns a reader for a local path, http(s):// URL or ftp:// URL, plus
// the file name used for format detection.
func (o *Opener) Open(ctx context.Context, source string) (io.ReadCloser, string, error) {
	switch scheme := sourceScheme(source); scheme {
	case "http", "https":
		rc, err := o.http.Download(ctx, source)
		if err != nil {
			return nil, "", eris.Wrapf(err, "fetcher: open %s", source)
		}
		return rc, SourceName(source), nil
	case "ftp":
		rc, err := o.ftp.Download(ctx, source)
		if err != nil {
			return nil, "", eris.Wrapf(err, "fetcher: open %s", source)
		}
		return rc, SourceName(source), nil
	case "":
		f, err := os.Open(source)
		if err != nil {
			return nil, "", eris.Wrapf(err, "fetcher: open %s", source)
		}
		return f, source, nil
	default:
		return nil, "", eris.Errorf("fetcher: unsupported scheme %q", scheme)
	}
}

// SourceName returns the base file name of a path or URL, without query string.
func SourceName(source string) string {
	if sourceScheme(source) == "" {
		return path.Base(source)
	}
	u, err := url.Parse(source)
	if err != nil || u.Path == "" {
		return source
	}
	return path.Base(u.Path)
}

func sourceScheme(source string) string {
	i := strings.Index(source, "://")
	if i <= 0 {
		return ""
	}
	return strings.ToLower(source[:i])
}
