package gcs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	gcstorage "cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/JakeFAU/ntsb-publisher/internal/storage"
)

const testBucket = "test-bucket"

// newTestStore creates a BlobStore pointed at a test server.
func newTestStore(t *testing.T, handler http.Handler) *BlobStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := gcstorage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, Config{Bucket: testBucket})
	require.NoError(t, err)
	return store
}

func TestNewValidatesArguments(t *testing.T) {
	_, err := New(nil, Config{Bucket: testBucket})
	assert.Error(t, err)

	client, err := gcstorage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer client.Close()
	_, err = New(client, Config{})
	assert.Error(t, err)
}

func TestPutUploadsObject(t *testing.T) {
	objectName := "ntsb/ledger.csv"
	objectData := []byte("20220401X00001,20220402X00002\n")

	// Simulates the GCS JSON API for multipart uploads.
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, fmt.Sprintf("/upload/storage/v1/b/%s/o", testBucket))
		assert.Equal(t, objectName, r.URL.Query().Get("name"))
		assert.Equal(t, "multipart", r.URL.Query().Get("uploadType"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), string(objectData))

		fmt.Fprintln(w, `{ "name": "`+objectName+`" }`)
	})

	store := newTestStore(t, handler)
	assert.NoError(t, store.Put(context.Background(), objectName, objectData))
}

func TestPutServerError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	store := newTestStore(t, handler)
	assert.Error(t, store.Put(context.Background(), "ledger.csv", []byte("x")))
}

func TestGetDownloadsObject(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/"+testBucket+"/description.txt", r.URL.Path)
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "Recent accidents, updated 01/04/2022")
	})

	store := newTestStore(t, handler)
	data, err := store.Get(context.Background(), "description.txt")
	require.NoError(t, err)
	assert.Equal(t, "Recent accidents, updated 01/04/2022", string(data))
}

func TestGetMissingObjectMapsToNotFound(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	store := newTestStore(t, handler)
	_, err := store.Get(context.Background(), "ledger.csv")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEmptyNameRejected(t *testing.T) {
	store := newTestStore(t, http.NotFoundHandler())
	_, err := store.Get(context.Background(), "")
	assert.Error(t, err)
	assert.Error(t, store.Put(context.Background(), "  ", nil))
}
