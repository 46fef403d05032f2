package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/maraichr/slidepilot/internal/config"
)

// MaxDocumentBytes caps every fetch.
const MaxDocumentBytes = 50 << 20

// Fetcher returns the raw bytes behind a document location.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// ObjectGetter is the blob store read used for uploads.
type ObjectGetter interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// Router dispatches a location to the fetcher for its scheme. A nil entry
// means that scheme is not configured.
type Router struct {
	Local  Fetcher
	Object Fetcher
	S3     Fetcher
	HTTP   Fetcher
}

func (r *Router) Fetch(ctx context.Context, ref string) ([]byte, error) {
	lower := strings.ToLower(ref)
	var (
		f    Fetcher
		name string
	)
	switch {
	case strings.HasPrefix(lower, "s3://"):
		f, name = r.S3, "s3"
	case strings.HasPrefix(lower, "minio://"), strings.HasPrefix(lower, "uploads/"):
		f, name = r.Object, "object store"
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		f, name = r.HTTP, "http"
	case strings.Contains(lower, "/uploads/") && !fileExists(ref):
		f, name = r.Object, "object store"
	default:
		f, name = r.Local, "local"
	}
	if f == nil {
		return nil, fmt.Errorf("fetch %s: %s fetcher not configured", ref, name)
	}
	return f.Fetch(ctx, ref)
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// LocalFetcher reads files from disk.
type LocalFetcher struct{}

func (LocalFetcher) Fetch(_ context.Context, ref string) ([]byte, error) {
	f, err := os.Open(ref)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()
	return readLimited(f)
}

// ObjectFetcher reads uploads from the blob store. Both "minio://key" and bare
// "uploads/..." keys are accepted; a path containing "/uploads/" is cut to
// the key starting at "uploads/".
type ObjectFetcher struct {
	Store ObjectGetter
}

func (o ObjectFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	key := ObjectKey(ref)
	rc, err := o.Store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer rc.Close()
	return readLimited(rc)
}

// ObjectKey normalizes an object store location to its key.
func ObjectKey(ref string) string {
	if rest, ok := strings.CutPrefix(ref, "minio://"); ok {
		return rest
	}
	if i := strings.Index(ref, "/uploads/"); i >= 0 {
		return ref[i+1:]
	}
	return strings.TrimPrefix(ref, "/")
}

// S3Fetcher downloads s3://bucket/key objects. Works with AWS S3 and any
// S3-compatible endpoint.
type S3Fetcher struct {
	client *s3.Client
}

func NewS3Fetcher(ctx context.Context, cfg appconfig.S3Config) (*S3Fetcher, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = &cfg.Endpoint
			o.UsePathStyle = true
		}
	})
	return &S3Fetcher{client: client}, nil
}

func (f *S3Fetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	bucket, key, err := ParseS3URL(ref)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("get s3 object %s: %w", ref, err)
	}
	defer resp.Body.Close()
	return readLimited(resp.Body)
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(ref string) (bucket, key string, err error) {
	u, err := url.Parse(ref)
	if err != nil || u.Scheme != "s3" {
		return "", "", fmt.Errorf("invalid s3 url %q", ref)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("invalid s3 url %q: bucket and key required", ref)
	}
	return u.Host, key, nil
}

// HTTPFetcher downloads documents over HTTP(S).
type HTTPFetcher struct {
	client *http.Client
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "slidepilot/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", ref, resp.StatusCode)
	}
	return readLimited(resp.Body)
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	if len(data) > MaxDocumentBytes {
		return nil, fmt.Errorf("document exceeds %d bytes", MaxDocumentBytes)
	}
	return data, nil
}
