// Package source reads documents and manifests from local paths, HTTP(S)
// URLs and S3 objects.
//
//	data, err := source.New(source.WithRegion("eu-west-1")).
//	    Open(ctx, "s3://my-bucket/pages/index.html")
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	wireerrors "github.com/vango-dev/eventwire/internal/errors"
)

// DefaultMaxSize caps how much is read from any source.
const DefaultMaxSize = 16 << 20

// ErrTooLarge is returned when a source exceeds the size limit.
var ErrTooLarge = errors.New("source exceeds size limit")

// ErrUnsupportedScheme is returned for URI schemes Open cannot read.
var ErrUnsupportedScheme = errors.New("unsupported source scheme")

// ObjectGetter is the part of the S3 client Open uses.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Opener reads sources. The zero value is not usable; call New.
type Opener struct {
	httpClient *http.Client
	maxSize    int64
	region     string
	endpoint   string
	logger     *slog.Logger

	s3Once sync.Once
	s3     ObjectGetter
	s3Err  error
}

// Option configures an Opener.
type Option func(*Opener)

// WithHTTPClient sets the client for http(s) sources.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opener) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// WithMaxSize sets the size limit. Zero disables it.
func WithMaxSize(n int64) Option {
	return func(o *Opener) {
		o.maxSize = n
	}
}

// WithRegion sets the AWS region for s3 sources.
func WithRegion(region string) Option {
	return func(o *Opener) {
		o.region = region
	}
}

// WithEndpoint points s3 sources at an S3-compatible endpoint, using
// path-style addressing.
func WithEndpoint(endpoint string) Option {
	return func(o *Opener) {
		o.endpoint = endpoint
	}
}

// WithS3Client sets the S3 client instead of loading one from the default
// AWS configuration.
func WithS3Client(c ObjectGetter) Option {
	return func(o *Opener) {
		if c != nil {
			o.s3 = c
			o.s3Once.Do(func() {})
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Opener) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates an Opener.
func New(opts ...Option) *Opener {
	o := &Opener{
		httpClient: http.DefaultClient,
		maxSize:    DefaultMaxSize,
		logger:     slog.Default().With("component", "source"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Open reads the whole source named by uri: a local path, file://,
// http://, https:// or s3://bucket/key.
func (o *Opener) Open(ctx context.Context, uri string) ([]byte, error) {
	if uri == "" {
		return nil, wireerrors.New("E321").WithDetail("empty source")
	}

	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Plain paths, including Windows drive letters.
		return o.wrap(uri, o.openFile(uri))
	}

	o.logger.Debug("opening source", "uri", uri, "scheme", u.Scheme)
	switch u.Scheme {
	case "file":
		return o.wrap(uri, o.openFile(u.Path))
	case "http", "https":
		return o.wrap(uri, o.openHTTP(ctx, uri))
	case "s3":
		return o.wrap(uri, o.openS3(ctx, u.Host, strings.TrimPrefix(u.Path, "/")))
	default:
		return nil, wireerrors.New("E321").WithDetail(uri).Wrap(fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme))
	}
}

// IsLocal reports whether uri names a local file.
func IsLocal(uri string) bool {
	u, err := url.Parse(uri)
	return err != nil || u.Scheme == "" || len(u.Scheme) == 1 || u.Scheme == "file"
}

// LocalPath returns the filesystem path of a local uri.
func LocalPath(uri string) string {
	if u, err := url.Parse(uri); err == nil && u.Scheme == "file" {
		return u.Path
	}
	return uri
}

func (o *Opener) wrap(uri string, open func() ([]byte, error)) ([]byte, error) {
	data, err := open()
	if err != nil {
		return nil, wireerrors.New("E321").WithDetail(uri).Wrap(err)
	}
	return data, nil
}

func (o *Opener) openFile(path string) func() ([]byte, error) {
	return func() ([]byte, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return o.readAll(f)
	}
}

func (o *Opener) openHTTP(ctx context.Context, uri string) func() ([]byte, error) {
	return func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return nil, err
		}
		resp, err := o.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("GET %s: %s", uri, resp.Status)
		}
		return o.readAll(resp.Body)
	}
}

func (o *Opener) openS3(ctx context.Context, bucket, key string) func() ([]byte, error) {
	return func() ([]byte, error) {
		if bucket == "" || key == "" {
			return nil, fmt.Errorf("s3 source needs a bucket and a key")
		}
		client, err := o.s3Client(ctx)
		if err != nil {
			return nil, err
		}
		out, err := client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, fmt.Errorf("s3 get failed: %w", err)
		}
		defer out.Body.Close()
		return o.readAll(out.Body)
	}
}

func (o *Opener) s3Client(ctx context.Context) (ObjectGetter, error) {
	o.s3Once.Do(func() {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if o.region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(o.region))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			o.s3Err = err
			return
		}
		endpoint := o.endpoint
		o.s3 = s3.NewFromConfig(cfg, func(opts *s3.Options) {
			if endpoint != "" {
				opts.BaseEndpoint = aws.String(endpoint)
				opts.UsePathStyle = true
			}
		})
	})
	return o.s3, o.s3Err
}

func (o *Opener) readAll(r io.Reader) ([]byte, error) {
	if o.maxSize <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, o.maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > o.maxSize {
		return nil, ErrTooLarge
	}
	return data, nil
}
