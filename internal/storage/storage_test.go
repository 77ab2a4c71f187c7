package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadim/barkwrapped/internal/domain/wrapped/entity"
)

func TestArtifactKey(t *testing.T) {
	tests := []struct {
		kind entity.ImageKind
		want string
	}{
		{entity.KindHighestMetrics, "rex/1-highest_metrics.png"},
		{entity.KindWordCloud, "rex/2-word_cloud.png"},
		{entity.KindReactionPerformance, "rex/3-reaction_performance.png"},
		{entity.KindSentiment, "rex/4-sentiment.png"},
	}
	for _, tt := range tests {
		got, err := ArtifactKey("rex", tt.kind)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := ArtifactKey("../rex", entity.KindWordCloud)
	assert.ErrorIs(t, err, entity.ErrInvalidUsername)

	_, err = ArtifactKey("rex", entity.ImageKind(9))
	assert.ErrorIs(t, err, entity.ErrUnknownKind)
}

func TestLocalSink(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewLocalSink(dir)
	require.NoError(t, err)
	ctx := context.Background()

	path, err := sink.Save(ctx, "rex", entity.KindSentiment, []byte("png-1"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "rex", "4-sentiment.png"), path)

	// overwrite is allowed
	_, err = sink.Save(ctx, "rex", entity.KindSentiment, []byte("png-2"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "png-2", string(data))

	entries, err := os.ReadDir(filepath.Join(dir, "rex"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")

	rc, err := sink.Open(ctx, "rex", entity.KindSentiment)
	require.NoError(t, err)
	opened, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "png-2", string(opened))

	_, err = sink.Open(ctx, "rex", entity.KindWordCloud)
	assert.ErrorIs(t, err, ErrImageNotFound)

	require.NoError(t, sink.Delete(ctx, "rex"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, sink.Delete(ctx, "never_saved"))
}

type s3Request struct {
	method string
	path   string
	ctype  string
}

func fakeS3(t *testing.T) (*httptest.Server, func() []s3Request) {
	t.Helper()
	var mu sync.Mutex
	var reqs []s3Request

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		mu.Lock()
		reqs = append(reqs, s3Request{method: r.Method, path: r.URL.Path, ctype: r.Header.Get("Content-Type")})
		mu.Unlock()

		switch r.Method {
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
			return
		case http.MethodGet:
			if r.URL.Path != "/wrapped/rex/1-highest_metrics.png" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", ContentTypePNG)
			_, _ = w.Write([]byte("stored"))
			return
		}
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	return srv, func() []s3Request {
		mu.Lock()
		defer mu.Unlock()
		return append([]s3Request(nil), reqs...)
	}
}

func TestS3Sink(t *testing.T) {
	srv, requests := fakeS3(t)

	sink, err := NewS3Sink(S3Config{
		Endpoint:        srv.URL,
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Bucket:          "wrapped",
		Region:          "us-east-1",
		PublicURL:       "https://cdn.example.com/wrapped/",
	})
	require.NoError(t, err)
	ctx := context.Background()

	url, err := sink.Save(ctx, "rex", entity.KindWordCloud, []byte("\x89PNG"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/wrapped/rex/2-word_cloud.png", url)

	require.NoError(t, sink.Delete(ctx, "rex"))

	reqs := requests()
	require.Len(t, reqs, 1+len(entity.AllKinds))
	assert.Equal(t, http.MethodPut, reqs[0].method)
	assert.Equal(t, "/wrapped/rex/2-word_cloud.png", reqs[0].path)
	assert.Equal(t, ContentTypePNG, reqs[0].ctype)
	for _, r := range reqs[1:] {
		assert.Equal(t, http.MethodDelete, r.method)
	}
}

func TestNewS3Sink_RequiresBucket(t *testing.T) {
	_, err := NewS3Sink(S3Config{Endpoint: "http://localhost:9000", Region: "us-east-1"})
	assert.Error(t, err)
}

func TestS3Sink_Open(t *testing.T) {
	srv, _ := fakeS3(t)

	sink, err := NewS3Sink(S3Config{
		Endpoint:        srv.URL,
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Bucket:          "wrapped",
		Region:          "us-east-1",
	})
	require.NoError(t, err)
	ctx := context.Background()

	rc, err := sink.Open(ctx, "rex", entity.KindHighestMetrics)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "stored", string(data))

	_, err = sink.Open(ctx, "rex", entity.KindSentiment)
	assert.ErrorIs(t, err, ErrImageNotFound)
}
