// Package fetch retrieves raw corpus data from stdin, local files or HTTP(S) URLs.
package fetch

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"time"
)

// Size limits to prevent memory overload while reading a corpus
const (
	MaxFileSizeBytes = 64 * 1024 * 1024  // 64MB limit for files and stdin
	MaxHTTPSizeBytes = 128 * 1024 * 1024 // 128MB limit for HTTP content (may not have Content-Length)
)

// HTTPRequestTimeout bounds a whole corpus download
const HTTPRequestTimeout = 60 * time.Second

// specific timeout thresholds (based on HTTPRequestTimeout)
var (
	HTTPDialTimeout           = HTTPRequestTimeout / 6
	HTTPTLSTimeout            = HTTPRequestTimeout / 6
	HTTPResponseHeaderTimeout = HTTPRequestTimeout / 2
)

// Content is an open corpus source.
type Content struct {
	io.ReadCloser
	Name      string // file path, URL or "stdin"
	MediaType string // from Content-Type for HTTP sources, otherwise empty
}

// Ext returns the lower-cased extension of the source name, e.g. ".json".
func (c *Content) Ext() string {
	name := c.Name
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(path.Ext(name))
}

// limitedReadCloser wraps an io.ReadCloser to enforce size limits
type limitedReadCloser struct {
	io.ReadCloser
	N      int64  // max bytes remaining
	source string // for error messages
}

func (l *limitedReadCloser) Read(p []byte) (n int, err error) {
	if l.N <= 0 {
		// content of exactly the limit is fine; one more byte is not
		var next [1]byte
		extra, err := l.ReadCloser.Read(next[:])
		if extra > 0 {
			return 0, fmt.Errorf("content from %q exceeds size limit", l.source)
		}
		return 0, err
	}
	if int64(len(p)) > l.N {
		p = p[0:l.N]
	}
	n, err = l.ReadCloser.Read(p)
	l.N -= int64(n)
	return
}

// httpClient is shared and safe for concurrent use.
var httpClient = &http.Client{
	Timeout: HTTPRequestTimeout,
	Transport: &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: HTTPDialTimeout,
		}).DialContext,
		TLSHandshakeTimeout:   HTTPTLSTimeout,
		ResponseHeaderTimeout: HTTPResponseHeaderTimeout,
	},
}

// GetContent opens a corpus source:
//   - "-" reads from standard input
//   - URLs starting with "http://" or "https://" are fetched via HTTP GET
//   - everything else is treated as a local file path
//
// The caller must close the returned Content.
func GetContent(ctx context.Context, source string) (*Content, error) {
	switch {
	case source == "-":
		return &Content{
			ReadCloser: &limitedReadCloser{
				ReadCloser: io.NopCloser(os.Stdin),
				N:          MaxFileSizeBytes,
				source:     "stdin",
			},
			Name: "stdin",
		}, nil
	case strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://"):
		return fetchURL(ctx, source)
	default:
		return fetchFile(source)
	}
}

// fetchURL downloads a corpus; ctx cancels the request.
func fetchURL(ctx context.Context, url string) (*Content, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for URL %q: %w", url, err)
	}
	req.Header.Set("User-Agent", "related/0.1")
	req.Header.Set("Accept", "application/json, application/x-ndjson, application/yaml;q=0.9, */*;q=0.5")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL %q: %w", url, err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP request failed for URL %q: status %s", url, resp.Status)
	}

	// reject oversized bodies up front when the server says how big they are
	if contentLength := resp.Header.Get("Content-Length"); contentLength != "" {
		if size, err := strconv.ParseInt(contentLength, 10, 64); err == nil && size > MaxHTTPSizeBytes {
			resp.Body.Close()
			return nil, fmt.Errorf("HTTP content too large (%d bytes > %d bytes limit)", size, MaxHTTPSizeBytes)
		}
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))

	return &Content{
		ReadCloser: &limitedReadCloser{
			ReadCloser: resp.Body,
			N:          MaxHTTPSizeBytes,
			source:     url,
		},
		Name:      url,
		MediaType: mediaType,
	}, nil
}

// fetchFile opens a local corpus file after checking its size.
func fetchFile(path string) (*Content, error) {
	fileInfo, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("file %q does not exist", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to access file %q: %w", path, err)
	}
	if fileInfo.IsDir() {
		return nil, fmt.Errorf("%q is a directory", path)
	}

	if fileInfo.Size() > MaxFileSizeBytes {
		return nil, fmt.Errorf("file %q is too large (%d bytes > %d bytes limit)",
			path, fileInfo.Size(), MaxFileSizeBytes)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %q: %w", path, err)
	}

	return &Content{ReadCloser: file, Name: path}, nil
}
