// Zaparoo Workshop
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo Workshop.
//
// Zaparoo Workshop is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo Workshop is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo Workshop.  If not, see <http://www.gnu.org/licenses/>.

// Package httpclient builds the HTTP clients used for steamcommunity.com
// scraping, the Steam Web API and signed download URLs.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/ZaparooProject/zaparoo-workshop/pkg/config"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	// DefaultTimeoutSeconds is the default timeout for HTTP requests
	DefaultTimeoutSeconds = 30
	// DefaultRetries is how many times an idempotent request is retried
	// after a connection error, 429 or 5xx.
	DefaultRetries = 2
)

// StatusError is returned when a server answers with a non-2xx status.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// UserAgentTransport stamps every request with the app user agent.
type UserAgentTransport struct {
	Base http.RoundTripper
}

func (t *UserAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = DefaultTransport
	}
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", config.UserAgent)
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform HTTP round trip: %w", err)
	}
	return resp, nil
}

// DefaultTransport provides a configured transport with connection pooling and reasonable timeouts
var DefaultTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	ResponseHeaderTimeout: 30 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   10,
	IdleConnTimeout:       90 * time.Second,
}

// Client wraps http.Client with the helpers the scrapers share.
type Client struct {
	*http.Client
}

// NewClientWithTimeout creates a client without retries.
func NewClientWithTimeout(timeout time.Duration) *Client {
	return &Client{
		Client: &http.Client{
			Transport: &UserAgentTransport{Base: DefaultTransport},
			Timeout:   timeout,
		},
	}
}

// NewRetryingClient creates a client that retries transient failures with
// exponential backoff. The final response is passed through unchanged so
// callers still see the real status code.
func NewRetryingClient(timeout time.Duration, retries int) *Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{
		Transport: &UserAgentTransport{Base: DefaultTransport},
		Timeout:   timeout,
	}
	rc.RetryMax = retries
	rc.Logger = retryLogger{}
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return &Client{Client: rc.StandardClient()}
}

// NewClientWithJar creates a client carrying the given cookie jar.
func NewClientWithJar(jar *cookiejar.Jar, timeout time.Duration) *Client {
	c := NewClientWithTimeout(timeout)
	c.Jar = jar
	return c
}

// Get performs a GET request and returns the response
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error performing GET request: %w", err)
	}

	return resp, nil
}

// GetString performs a GET and returns the body. Non-2xx statuses are
// returned as *StatusError.
func (c *Client) GetString(ctx context.Context, url string) (string, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return "", err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("error closing response body")
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{URL: url, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response body: %w", err)
	}
	return string(body), nil
}

// DownloadFileArgs contains arguments for file download operations
type DownloadFileArgs struct {
	// Progress is called after every chunk with bytes written so far and
	// the expected total, which is -1 when the server sent no length.
	Progress func(written, total int64)
	// Fs receives the file. Nil means the OS filesystem.
	Fs         afero.Fs
	URL        string
	OutputPath string
	TempPath   string
}

type progressWriter struct {
	w        io.Writer
	progress func(written, total int64)
	total    int64
	written  int64
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	if p.progress != nil {
		p.progress(p.written, p.total)
	}
	return n, err //nolint:wrapcheck // passthrough writer
}

const downloadChunk = 8192

// DownloadFile streams URL to OutputPath, removing partial files on
// failure.
func (c *Client) DownloadFile(ctx context.Context, args DownloadFileArgs) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, args.URL, http.NoBody)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("error getting url: %w", err)
	}
	if resp == nil {
		return errors.New("received nil response")
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("error closing response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: args.URL, Code: resp.StatusCode}
	}

	fs := args.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	outputPath := args.OutputPath
	if args.TempPath != "" {
		outputPath = args.TempPath
	}

	file, err := fs.Create(outputPath)
	if err != nil {
		return fmt.Errorf("error creating file: %w", err)
	}

	discard := func() {
		if closeErr := file.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msgf("error closing file: %s", outputPath)
		}
		if removeErr := fs.Remove(outputPath); removeErr != nil {
			log.Warn().Err(removeErr).Msgf("error removing partial download: %s", outputPath)
		}
	}

	pw := &progressWriter{w: file, progress: args.Progress, total: resp.ContentLength}
	written, err := io.CopyBuffer(pw, resp.Body, make([]byte, downloadChunk))
	if err != nil {
		discard()
		return fmt.Errorf("error downloading file: %w", err)
	}

	expected := resp.ContentLength
	if expected > 0 && written != expected {
		discard()
		return fmt.Errorf("download incomplete: expected %d bytes, got %d", expected, written)
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("error closing file: %w", err)
	}

	if args.TempPath != "" && args.TempPath != args.OutputPath {
		if err := fs.Rename(args.TempPath, args.OutputPath); err != nil {
			if removeErr := fs.Remove(args.TempPath); removeErr != nil {
				log.Warn().Err(removeErr).Msgf("error removing temp file: %s", args.TempPath)
			}
			return fmt.Errorf("error renaming temp file: %w", err)
		}
	}

	return nil
}

// retryLogger routes retryablehttp's leveled logging into zerolog.
type retryLogger struct{}

func (retryLogger) Error(msg string, kv ...any) { log.Error().Fields(kv).Msg(msg) }
func (retryLogger) Info(msg string, kv ...any)  { log.Debug().Fields(kv).Msg(msg) }
func (retryLogger) Debug(msg string, kv ...any) { log.Trace().Fields(kv).Msg(msg) }
func (retryLogger) Warn(msg string, kv ...any)  { log.Warn().Fields(kv).Msg(msg) }
