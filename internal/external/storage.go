package external

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kjannette/watchtower-backend/internal/httputil"
	"go.uber.org/zap"
)

// ErrReportNotFound means the object store has nothing at the given path.
var ErrReportNotFound = errors.New("report not found in storage")

// ErrReportTooLarge means the object exceeded the download limit. The report
// is rejected rather than parsed from a truncated body.
var ErrReportTooLarge = errors.New("report exceeds size limit")

const maxReportBytes = 32 << 20

// StorageClient downloads report CSVs from the public bucket.
type StorageClient struct {
	baseURL    string
	httpClient *http.Client
	retry      httputil.RetryConfig
	maxBytes   int64
}

func NewStorageClient(baseURL string, log *zap.Logger) *StorageClient {
	return &StorageClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
			MaxDelay:    5 * time.Second,
			Logger:      log.Named("storage"),
		},
		maxBytes: maxReportBytes,
	}
}

// ObjectURL returns the public download URL for a storage path
// ("bucket/object.csv").
func (c *StorageClient) ObjectURL(storagePath string) string {
	segs := strings.Split(strings.TrimLeft(storagePath, "/"), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return c.baseURL + "/storage/v1/object/public/" + strings.Join(segs, "/")
}

// FetchReport returns the CSV text stored at storagePath.
func (c *StorageClient) FetchReport(ctx context.Context, storagePath string) (string, error) {
	if storagePath == "" {
		return "", fmt.Errorf("fetch report: empty storage path")
	}
	u := c.ObjectURL(storagePath)

	resp, err := httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	})
	if err != nil {
		return "", fmt.Errorf("fetch report %s: %w", storagePath, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%s: %w", storagePath, ErrReportNotFound)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("fetch report %s: status %d", storagePath, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read report %s: %w", storagePath, err)
	}
	if int64(len(body)) > c.maxBytes {
		return "", fmt.Errorf("%s: %w (%d bytes)", storagePath, ErrReportTooLarge, c.maxBytes)
	}
	return string(body), nil
}
