package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"
)

// GCSFetcher downloads compressed records from a Google Cloud Storage bucket
// that mirrors the public replay store. ObjectTemplate names the object, e.g.
// "replays/%CODE%.json.gz".
type GCSFetcher struct {
	Bucket         string
	ObjectTemplate string

	svc *storage.Service
}

// NewGCSFetcher builds a fetcher for bucket. Extra client options (endpoint,
// credentials, HTTP client) are passed through to the storage client.
func NewGCSFetcher(ctx context.Context, bucket, objectTemplate string, opts ...option.ClientOption) (*GCSFetcher, error) {
	if bucket == "" {
		return nil, errors.New("gcs bucket empty")
	}
	if !strings.Contains(objectTemplate, CodePlaceholder) {
		return nil, fmt.Errorf("gcs object template %q lacks %s", objectTemplate, CodePlaceholder)
	}
	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSFetcher{Bucket: bucket, ObjectTemplate: objectTemplate, svc: svc}, nil
}

// Fetch downloads the object media for code.
func (f *GCSFetcher) Fetch(ctx context.Context, code Code) ([]byte, error) {
	if !IsCode(string(code)) {
		return nil, fmt.Errorf("fetch: invalid replay code %q", code)
	}
	// The storage client escapes the object name itself.
	object := strings.ReplaceAll(f.ObjectTemplate, CodePlaceholder, string(code))
	resp, err := f.svc.Objects.Get(f.Bucket, object).Context(ctx).Download()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
			return nil, classify(ClassNotFound, code, err)
		}
		return nil, classify(ClassNetwork, code, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBlobSize+1))
	if err != nil {
		return nil, classify(ClassNetwork, code, err)
	}
	if len(b) > maxBlobSize {
		return nil, classify(ClassInvalidData, code, errors.New("replay blob exceeds size limit"))
	}
	return b, nil
}
