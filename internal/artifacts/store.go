package artifacts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/gqlregistry/registry-core/internal/observability"
	"github.com/gqlregistry/registry-core/internal/pkg/logger"
)

// Type identifies which byproduct of a publish is being stored under a
// target's artifact prefix (§4.7).
type Type string

const (
	TypeSDL        Type = "sdl"
	TypeServices   Type = "services"
	TypeSupergraph Type = "supergraph"
	TypeMetadata   Type = "metadata"
)

// Key builds the content-addressed object key for a target's artifact,
// optionally scoped to a named contract: artifact/{targetId}/{type} or
// artifact/{targetId}/contracts/{contractName}/{type}.
func Key(targetID string, contractName string, t Type) string {
	if strings.TrimSpace(contractName) == "" {
		return fmt.Sprintf("artifact/%s/%s", targetID, t)
	}
	return fmt.Sprintf("artifact/%s/contracts/%s/%s", targetID, contractName, t)
}

func contentTypeFor(t Type) string {
	switch t {
	case TypeSDL, TypeSupergraph:
		return "text/plain; charset=utf-8"
	case TypeServices, TypeMetadata:
		return "application/json"
	default:
		return ""
	}
}

// ObjectAttrs mirrors the subset of GCS object metadata the publisher
// needs to report back to callers (e.g. version status endpoints).
type ObjectAttrs struct {
	Size        int64
	ContentType string
	Updated     time.Time
	ETag        string
}

// Store publishes and retrieves a target's artifacts (§4.6 step 7,
// §4.7). Implementations must be safe for concurrent use.
type Store interface {
	Put(ctx context.Context, key string, t Type, data []byte) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Attrs(ctx context.Context, key string) (*ObjectAttrs, error)
	DeletePrefix(ctx context.Context, prefix string) error
	PublicURL(key string) string
}

type gcsStore struct {
	log           *logger.Logger
	client        *storage.Client
	bucket        string
	mode          ObjectStorageMode
	emulatorHost  string
	publicBaseURL string
}

// NewStore builds a Store over client, reading ARTIFACT_GCS_BUCKET_NAME
// and OBJECT_STORAGE_PUBLIC_BASE_URL from the environment.
func NewStore(client *storage.Client, cfg ObjectStorageConfig, log *logger.Logger) (Store, error) {
	bucket := strings.TrimSpace(os.Getenv("ARTIFACT_GCS_BUCKET_NAME"))
	if bucket == "" {
		return nil, fmt.Errorf("missing env var ARTIFACT_GCS_BUCKET_NAME")
	}
	publicBaseURL, err := resolvePublicBaseURL(cfg)
	if err != nil {
		return nil, err
	}
	return &gcsStore{
		log:           log.With("component", "ArtifactStore"),
		client:        client,
		bucket:        bucket,
		mode:          cfg.Mode,
		emulatorHost:  strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/"),
		publicBaseURL: publicBaseURL,
	}, nil
}

func resolvePublicBaseURL(cfg ObjectStorageConfig) (string, error) {
	raw := strings.TrimSpace(os.Getenv("OBJECT_STORAGE_PUBLIC_BASE_URL"))
	if raw != "" {
		parsed, err := url.Parse(raw)
		if err != nil || strings.TrimSpace(parsed.Scheme) == "" || strings.TrimSpace(parsed.Host) == "" {
			return "", fmt.Errorf("invalid OBJECT_STORAGE_PUBLIC_BASE_URL=%q; expected absolute URL like http://localhost:4443", raw)
		}
		return strings.TrimRight(raw, "/"), nil
	}
	if cfg.IsEmulatorMode() {
		return strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/"), nil
	}
	return "", nil
}

func (s *gcsStore) isEmulatorMode() bool {
	return IsEmulatorObjectStorageMode(s.mode) && s.emulatorHost != ""
}

func (s *gcsStore) Put(ctx context.Context, key string, t Type, data []byte) (err error) {
	start := time.Now()
	defer func() {
		observability.Current().ObserveArtifactUpload(string(t), time.Since(start), err)
	}()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if ct := contentTypeFor(t); ct != "" {
		w.ContentType = ct
	}
	if _, werr := w.Write(data); werr != nil {
		_ = w.Close()
		err = fmt.Errorf("artifacts: write %s: %w", key, werr)
		return err
	}
	if cerr := w.Close(); cerr != nil {
		err = fmt.Errorf("artifacts: close writer for %s: %w", key, cerr)
		return err
	}
	s.log.Debug("artifact stored", "key", key, "bytes", len(data))
	return nil
}

// readCloserWithCancel keeps the context backing an open reader alive
// until the reader is closed; cancelling eagerly truncates the read.
type readCloserWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *readCloserWithCancel) Close() error {
	err := r.ReadCloser.Close()
	if r.cancel != nil {
		r.cancel()
	}
	return err
}

func (s *gcsStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if s.isEmulatorMode() {
		ctx2, cancel := context.WithTimeout(ctx, 2*time.Minute)
		req, err := http.NewRequestWithContext(ctx2, http.MethodGet, s.emulatorObjectMediaURL(key), nil)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("artifacts: build emulator download request: %w", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("artifacts: emulator download %s: %w", key, err)
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			_ = resp.Body.Close()
			cancel()
			return nil, fmt.Errorf("artifacts: emulator download %s failed: status=%d body=%s", key, resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return &readCloserWithCancel{ReadCloser: resp.Body, cancel: cancel}, nil
	}

	ctx2, cancel := context.WithTimeout(ctx, 2*time.Minute)
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx2)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("artifacts: open reader for %s: %w", key, err)
	}
	return &readCloserWithCancel{ReadCloser: r, cancel: cancel}, nil
}

func (s *gcsStore) Attrs(ctx context.Context, key string) (*ObjectAttrs, error) {
	if s.isEmulatorMode() {
		ctx2, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx2, http.MethodGet, s.emulatorObjectMetaURL(key), nil)
		if err != nil {
			return nil, fmt.Errorf("artifacts: build emulator attrs request: %w", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("artifacts: emulator attrs %s: %w", key, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return nil, fmt.Errorf("artifacts: emulator attrs %s failed: status=%d body=%s", key, resp.StatusCode, strings.TrimSpace(string(body)))
		}
		var payload struct {
			Size        string `json:"size"`
			ContentType string `json:"contentType"`
			Updated     string `json:"updated"`
			ETag        string `json:"etag"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, fmt.Errorf("artifacts: decode emulator attrs %s: %w", key, err)
		}
		updated := time.Time{}
		if ts := strings.TrimSpace(payload.Updated); ts != "" {
			if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
				updated = parsed
			}
		}
		return &ObjectAttrs{ContentType: payload.ContentType, Updated: updated, ETag: payload.ETag}, nil
	}

	ctx2, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	attrs, err := s.client.Bucket(s.bucket).Object(key).Attrs(ctx2)
	if err != nil {
		return nil, fmt.Errorf("artifacts: fetch attrs for %s: %w", key, err)
	}
	return &ObjectAttrs{Size: attrs.Size, ContentType: attrs.ContentType, Updated: attrs.Updated, ETag: attrs.Etag}, nil
}

// DeletePrefix removes every object under prefix. The publisher does not
// call it: a service delete republishes the target's SDL artifact and
// removes no objects.
func (s *gcsStore) DeletePrefix(ctx context.Context, prefix string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var keys []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("artifacts: list prefix %s: %w", prefix, err)
		}
		keys = append(keys, attrs.Name)
	}
	for _, k := range keys {
		if err := s.client.Bucket(s.bucket).Object(k).Delete(ctx); err != nil {
			s.log.Warn("artifact delete failed", "key", k, "error", err)
		}
	}
	return nil
}

func (s *gcsStore) PublicURL(key string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if s.isEmulatorMode() {
		if u := s.emulatorObjectMediaURL(key); u != "" {
			return u
		}
	}
	if s.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", s.publicBaseURL, s.bucket, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, key)
}

func (s *gcsStore) emulatorObjectMediaURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media", s.emulatorHost, url.PathEscape(s.bucket), url.PathEscape(key))
}

func (s *gcsStore) emulatorObjectMetaURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/b/%s/o/%s", s.emulatorHost, url.PathEscape(s.bucket), url.PathEscape(key))
}
