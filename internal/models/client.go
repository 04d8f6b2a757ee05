package models

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/obiente/whisperbridge/internal/apperr"
)

// Client fetches model files over HTTP.
type Client struct {
	base string
	http *http.Client
}

// NewClient returns a client for base. A non-positive timeout means none;
// model files run to gigabytes.
func NewClient(base string, timeoutSec int) *Client {
	if base == "" {
		base = DefaultBaseURL
	}
	c := &http.Client{}
	if timeoutSec > 0 {
		c.Timeout = time.Duration(timeoutSec) * time.Second
	}
	return &Client{base: strings.TrimRight(base, "/"), http: c}
}

// URL is where the client fetches the named model from.
func (c *Client) URL(name string) string {
	return c.base + "/" + FileName(name)
}

// Fetch downloads the named model to dst. The body is streamed into a
// private temp file next to dst, which is renamed over dst only once the
// transfer completed.
func (c *Client) Fetch(ctx context.Context, name, dst string) error {
	url := c.URL(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return apperr.Download("build request for "+url, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Download("GET "+url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperr.Download(fmt.Sprintf("GET %s: http %d", url, resp.StatusCode), nil)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return apperr.IO("create", filepath.Dir(dst), err)
	}
	f, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".*.tmp")
	if err != nil {
		return apperr.IO("create temp file in", filepath.Dir(dst), err)
	}
	tmp := f.Name()

	pw := &progressWriter{name: name, total: resp.ContentLength}
	n, err := io.Copy(f, io.TeeReader(resp.Body, pw))
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return apperr.Download("read body of "+url, err)
	}
	if resp.ContentLength > 0 && n != resp.ContentLength {
		f.Close()
		os.Remove(tmp)
		return apperr.Download(fmt.Sprintf("short body from %s: %d of %d bytes", url, n, resp.ContentLength), nil)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return apperr.IO("close", tmp, err)
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		os.Remove(tmp)
		return apperr.IO("chmod", tmp, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return apperr.IO("rename", tmp, err)
	}
	log.Info().Str("model", name).Str("path", dst).Int64("bytes", n).Msg("models: download complete")
	return nil
}

// progressWriter logs every tenth of a known-length transfer.
type progressWriter struct {
	name   string
	total  int64
	done   int64
	logged int64
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.done += int64(len(b))
	if p.total > 0 {
		pct := p.done * 100 / p.total
		if pct/10 > p.logged/10 {
			p.logged = pct
			log.Info().Str("model", p.name).Int64("percent", pct).Msg("models: downloading")
		}
	}
	return len(b), nil
}
