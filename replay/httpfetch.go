package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// CodePlaceholder is substituted with the percent-encoded code in URL and object templates.
const CodePlaceholder = "%CODE%"

// maxBlobSize bounds a single compressed download.
const maxBlobSize = 16 << 20

// ExpandTemplate replaces CodePlaceholder in tmpl with the percent-encoded code.
func ExpandTemplate(tmpl string, code Code) string {
	return strings.ReplaceAll(tmpl, CodePlaceholder, url.QueryEscape(string(code)))
}

// HTTPFetcher downloads compressed records from a URL template such as
// "http://host/%CODE%.json.gz".
type HTTPFetcher struct {
	URLTemplate string
	HTTPClient  *http.Client
}

func (f *HTTPFetcher) http() *http.Client {
	if f.HTTPClient != nil {
		return f.HTTPClient
	}
	return http.DefaultClient
}

// Fetch performs a single GET; there are no retries.
func (f *HTTPFetcher) Fetch(ctx context.Context, code Code) ([]byte, error) {
	if !IsCode(string(code)) {
		return nil, fmt.Errorf("fetch: invalid replay code %q", code)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ExpandTemplate(f.URLTemplate, code), nil)
	if err != nil {
		return nil, classify(ClassNetwork, code, err)
	}
	// The blob itself is gzip; asking for it explicitly keeps the transport
	// from transparently inflating a Content-Encoding: gzip response.
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := f.http().Do(req)
	if err != nil {
		return nil, classify(ClassNetwork, code, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode == http.StatusNotFound {
		return nil, classify(ClassNotFound, code, fmt.Errorf("unexpected HTTP status code: %d", resp.StatusCode))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classify(ClassNetwork, code, fmt.Errorf("unexpected HTTP status code: %d", resp.StatusCode))
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBlobSize+1))
	if err != nil {
		return nil, classify(ClassNetwork, code, err)
	}
	if len(b) > maxBlobSize {
		return nil, classify(ClassInvalidData, code, errors.New("replay blob exceeds size limit"))
	}
	return b, nil
}
