package media_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finvault/wallet-engine/media"
)

// =============================================================================
// LOCAL UPLOADER
// =============================================================================

func TestLocal_Upload_WritesFileAndReturnsURL(t *testing.T) {
	dir := t.TempDir()
	l := media.NewLocal(dir, "http://localhost:8080/")

	url, err := l.Upload(context.Background(), media.File{
		Name:    "receipt.png",
		Content: []byte("fake-png"),
	}, "transactions")

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:8080/uploads/transactions/"), url)
	assert.True(t, strings.HasSuffix(url, ".png"), "original extension kept: %s", url)

	entries, err := os.ReadDir(filepath.Join(dir, "transactions"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	content, err := os.ReadFile(filepath.Join(dir, "transactions", entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, "fake-png", string(content))
}

func TestLocal_Upload_URLPassesThrough(t *testing.T) {
	l := media.NewLocal(t.TempDir(), "http://localhost:8080")

	url, err := l.Upload(context.Background(), media.File{URL: "https://cdn.example/x.jpg"}, "users")

	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/x.jpg", url)
}

func TestLocal_Upload_EmptyFile(t *testing.T) {
	l := media.NewLocal(t.TempDir(), "http://localhost:8080")

	url, err := l.Upload(context.Background(), media.File{}, "users")

	require.NoError(t, err)
	assert.Empty(t, url)
}

// =============================================================================
// CLOUD UPLOADER
// =============================================================================

func TestCloud_Upload_PostsMultipartAndReturnsSecureURL(t *testing.T) {
	// GIVEN: An upload endpoint capturing the multipart form
	// WHEN: Uploading raw content
	// THEN: file, upload_preset and folder fields arrive; secure_url is returned

	var gotPreset, gotFolder, gotFile string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotPreset = r.FormValue("upload_preset")
		gotFolder = r.FormValue("folder")
		f, _, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		buf := make([]byte, 16)
		n, _ := f.Read(buf)
		gotFile = string(buf[:n])
		json.NewEncoder(w).Encode(map[string]string{"secure_url": "https://cdn.example/abc.jpg"})
	}))
	defer server.Close()

	c := media.NewCloud(server.URL, "unsigned-preset")
	url, err := c.Upload(context.Background(), media.File{
		Name:    "pic.jpg",
		Content: []byte("jpeg-bytes"),
	}, "users")

	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/abc.jpg", url)
	assert.Equal(t, "unsigned-preset", gotPreset)
	assert.Equal(t, "users", gotFolder)
	assert.Equal(t, "jpeg-bytes", gotFile)
}

func TestCloud_Upload_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "Invalid preset"}})
	}))
	defer server.Close()

	c := media.NewCloud(server.URL, "bad-preset")
	_, err := c.Upload(context.Background(), media.File{Name: "x.jpg", Content: []byte("x")}, "users")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid preset")
}

func TestCloud_Upload_URLPassesThroughWithoutNetwork(t *testing.T) {
	// Endpoint that fails the test if hit at all.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no network call expected for an already-hosted URL")
	}))
	defer server.Close()

	c := media.NewCloud(server.URL, "preset")
	url, err := c.Upload(context.Background(), media.File{URL: "https://cdn.example/keep.jpg"}, "users")

	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/keep.jpg", url)
}
