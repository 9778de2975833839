// Package sync implements ports.SyncClient: a small plain-HTTP client
// for the out-of-scope hash-upload/sync service (§1, §6). It follows the
// teacher's plain net/http fetch pattern (tools/oui/oui_updater) rather than
// pulling in a dedicated HTTP client library, since the surface here is a
// single probe request plus a multipart upload.
package sync

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// HTTPClient implements ports.SyncClient against a remote collector that
// accepts multipart capture uploads and answers a lightweight reachability
// probe.
type HTTPClient struct {
	BaseURL string
	HTTP    *http.Client
}

// NewHTTPClient constructs an HTTPClient with a bounded request timeout.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Reachable probes the collector's health endpoint. Any transport error or
// non-2xx response is treated as unreachable, never as a fatal condition:
// the caller's home-gate sync is best-effort (§4.12 step 5).
func (c *HTTPClient) Reachable(ctx context.Context) bool {
	if c.BaseURL == "" {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/v1/ping", nil)
	if err != nil {
		return false
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Sync uploads every regular file under capturesDir, one multipart POST per
// file; it does not check which files the collector already holds.
func (c *HTTPClient) Sync(ctx context.Context, capturesDir string) error {
	entries, err := os.ReadDir(capturesDir)
	if err != nil {
		return fmt.Errorf("sync: read captures dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := c.uploadOne(ctx, filepath.Join(capturesDir, entry.Name())); err != nil {
			return fmt.Errorf("sync: upload %s: %w", entry.Name(), err)
		}
	}
	return nil
}

func (c *HTTPClient) uploadOne(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("capture", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/captures", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("collector returned status %d", resp.StatusCode)
	}
	return nil
}
