package source

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wireerrors "github.com/vango-dev/eventwire/internal/errors"
)

type fakeS3 struct {
	objects map[string]string
	asked   []string
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.asked = append(f.asked, key)
	body, ok := f.objects[key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte("<p>hi</p>"), 0o644))

	o := New()
	data, err := o.Open(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", string(data))

	data, err = o.Open(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", string(data))

	_, err = o.Open(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, "E321", wireerrors.CodeOf(err))
}

func TestOpenHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("remote"))
	}))
	defer srv.Close()

	o := New(WithHTTPClient(srv.Client()))
	data, err := o.Open(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, "remote", string(data))

	_, err = o.Open(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestOpenS3(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{"bucket/pages/index.html": "<form></form>"}}
	o := New(WithS3Client(fake))

	data, err := o.Open(context.Background(), "s3://bucket/pages/index.html")
	require.NoError(t, err)
	assert.Equal(t, "<form></form>", string(data))
	assert.Equal(t, []string{"bucket/pages/index.html"}, fake.asked)

	_, err = o.Open(context.Background(), "s3://bucket/nope")
	assert.Error(t, err)

	_, err = o.Open(context.Background(), "s3://bucket")
	assert.Error(t, err)
}

func TestOpenLimitsAndSchemes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", 10)), 0o644))

	_, err := New(WithMaxSize(5)).Open(context.Background(), path)
	assert.ErrorIs(t, err, ErrTooLarge)

	data, err := New(WithMaxSize(0)).Open(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, data, 10)

	_, err = New().Open(context.Background(), "ftp://host/file")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)

	_, err = New().Open(context.Background(), "")
	assert.Equal(t, "E321", wireerrors.CodeOf(err))
}

func TestLocalHelpers(t *testing.T) {
	assert.True(t, IsLocal("./page.html"))
	assert.True(t, IsLocal("file:///tmp/page.html"))
	assert.True(t, IsLocal(`C:\pages\index.html`))
	assert.False(t, IsLocal("https://example.com/page.html"))
	assert.False(t, IsLocal("s3://bucket/key"))

	assert.Equal(t, "/tmp/page.html", LocalPath("file:///tmp/page.html"))
	assert.Equal(t, "./page.html", LocalPath("./page.html"))
}
