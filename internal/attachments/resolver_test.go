package attachments

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolver(t *testing.T, cfg Config) (*Resolver, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	return NewResolver(store, cfg), dir
}

func readAll(t *testing.T, r *Resolver, token string) string {
	t.Helper()
	rc, err := r.Open(context.Background(), token)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestSourceEmpty(t *testing.T) {
	assert.True(t, Source{}.Empty())
	assert.True(t, Source{URL: "   "}.Empty())
	assert.False(t, Source{URL: "http://x"}.Empty())
	assert.False(t, Source{Reader: strings.NewReader("")}.Empty())
}

func TestStoreUpload(t *testing.T) {
	r, dir := newResolver(t, Config{MaxBytes: 1024})

	token, err := r.Store(context.Background(), Source{Reader: strings.NewReader("receipt bytes")})
	require.NoError(t, err)
	assert.Len(t, token, 36)
	assert.FileExists(t, filepath.Join(dir, token))
	assert.Equal(t, "receipt bytes", readAll(t, r, token))
}

func TestStoreEmptySource(t *testing.T) {
	r, _ := newResolver(t, Config{})

	token, err := r.Store(context.Background(), Source{})
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestTokensAreUnique(t *testing.T) {
	r, _ := newResolver(t, Config{})

	a, err := r.Store(context.Background(), Source{Reader: strings.NewReader("a")})
	require.NoError(t, err)
	b, err := r.Store(context.Background(), Source{Reader: strings.NewReader("a")})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestStoreUploadTooLarge(t *testing.T) {
	r, dir := newResolver(t, Config{MaxBytes: 4})

	_, err := r.Store(context.Background(), Source{Reader: strings.NewReader("12345")})
	assert.ErrorIs(t, err, ErrTooLarge)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "partial payload must not be kept")
}

func TestStoreFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/receipt.png":
			w.Write([]byte("png-data"))
		case "/slow.png":
			time.Sleep(200 * time.Millisecond)
			w.Write([]byte("late"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	r, _ := newResolver(t, Config{MaxBytes: 1024, FetchTimeout: 50 * time.Millisecond})
	ctx := context.Background()

	token, err := r.Store(ctx, Source{URL: srv.URL + "/receipt.png"})
	require.NoError(t, err)
	assert.Equal(t, "png-data", readAll(t, r, token))

	_, err = r.Store(ctx, Source{URL: srv.URL + "/missing.png"})
	assert.ErrorIs(t, err, ErrFetch)

	_, err = r.Store(ctx, Source{URL: srv.URL + "/slow.png"})
	assert.Error(t, err, "fetch must respect the timeout")
}

func TestStoreFromURLTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	r, _ := newResolver(t, Config{MaxBytes: 16})
	_, err := r.Store(context.Background(), Source{URL: srv.URL})
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestStoreRejectsNonHTTPURL(t *testing.T) {
	r, _ := newResolver(t, Config{})

	for _, raw := range []string{"file:///etc/passwd", "ftp://example.com/a", "not a url", "http://"} {
		_, err := r.Store(context.Background(), Source{URL: raw})
		assert.ErrorIs(t, err, ErrInvalidURL, "url %q", raw)
	}
}

func TestOpenUnknownOrMalformedToken(t *testing.T) {
	r, _ := newResolver(t, Config{})

	_, err := r.Open(context.Background(), "0b7c3f1e-3f2a-4c1e-9a55-5b0c2f1d9e11")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Open(context.Background(), "../../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreIsWriteOnce(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	key := "0b7c3f1e-3f2a-4c1e-9a55-5b0c2f1d9e11"

	require.NoError(t, store.Put(context.Background(), key, strings.NewReader("first")))
	assert.Error(t, store.Put(context.Background(), key, strings.NewReader("second")))

	rc, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	assert.Equal(t, "first", string(b))
}
