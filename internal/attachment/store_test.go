package attachment

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, "http://files.test/")
	require.NoError(t, err)

	ctx := context.Background()
	link, err := store.Store(ctx, "finding-1", "../../etc/rapport final.pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link, "http://files.test/files/finding-1/"), link)
	assert.True(t, strings.HasSuffix(link, "-rapport%20final.pdf"), link)

	u, err := url.Parse(link)
	require.NoError(t, err)
	rel := strings.TrimPrefix(u.Path, "/files/")
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))

	t.Run("served under the files prefix", func(t *testing.T) {
		srv := httptest.NewServer(http.StripPrefix("/files/", store.Handler()))
		defer srv.Close()
		resp, err := http.Get(srv.URL + u.EscapedPath())
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "%PDF-1.4", string(body))
	})

	t.Run("same name twice keeps both", func(t *testing.T) {
		second, err := store.Store(ctx, "finding-1", "rapport final.pdf", []byte("v2"))
		require.NoError(t, err)
		assert.NotEqual(t, link, second)
	})

	t.Run("empty name is rejected", func(t *testing.T) {
		_, err := store.Store(ctx, "finding-1", "  ", []byte("x"))
		assert.Error(t, err)
	})
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore("http://files.test")
	link, err := store.Store(context.Background(), "finding-2", "photo.jpg", []byte("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())

	u, err := url.Parse(link)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, strings.TrimPrefix(u.Path, "/files"), nil)
	store.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jpeg", rec.Body.String())

	rec = httptest.NewRecorder()
	store.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/finding-2/missing.jpg", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "report.pdf", SanitizeName(`C:\Users\qa\report.pdf`))
	assert.Equal(t, "a_b.txt", SanitizeName("a?b.txt"))
	assert.Equal(t, "", SanitizeName(".."))
	assert.Equal(t, "", SanitizeName(""))
}
