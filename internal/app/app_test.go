package app

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fogleman/gg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/vadim/barkwrapped/internal/config"
	"github.com/vadim/barkwrapped/internal/imaging"
)

func solid(w, h int, c color.Color) image.Image {
	dc := gg.NewContext(w, h)
	dc.SetColor(c)
	dc.Clear()
	return dc.Image()
}

func writeAssets(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	paths := imaging.DefaultAssetPaths()

	save := func(rel string, img image.Image) {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, gg.SavePNG(path, img))
	}
	save(paths.Template, solid(imaging.CanvasWidth, imaging.CanvasHeight, color.RGBA{R: 60, G: 30, B: 80, A: 255}))
	save(paths.Mask, solid(100, 100, color.Black))
	for _, rel := range paths.Emojis {
		save(rel, solid(120, 120, color.RGBA{R: 255, G: 200, A: 255}))
	}

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "fonts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, paths.BoldFont), gobold.TTF, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, paths.TextFont), goregular.TTF, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, paths.CloudFont), goregular.TTF, 0o644))
	return dir
}

func fakeTwitter(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/2/users/by/username/rex", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"id":"42","name":"Rex","username":"rex"}}`))
	})
	mux.HandleFunc("/2/users/by/username/ghost", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"title":"Not Found Error","type":"https://api.twitter.com/2/problems/resource-not-found"}]}`))
	})
	mux.HandleFunc("/2/users/42/tweets", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[
			{"id":"1","text":"I love my walks in the park","created_at":"2024-03-01T10:00:00Z","public_metrics":{"like_count":2,"retweet_count":1,"reply_count":0,"quote_count":0}},
			{"id":"2","text":"terrible rainy day #wet","created_at":"2024-04-01T10:00:00Z","public_metrics":{"like_count":16,"retweet_count":0,"reply_count":3,"quote_count":2}},
			{"id":"3","text":"good walks good treats","created_at":"2024-05-01T10:00:00Z","public_metrics":{"like_count":1001,"retweet_count":7,"reply_count":1,"quote_count":0}}
		]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, twitterURL string) config.Config {
	t.Helper()
	out := t.TempDir()
	return config.Config{
		Server:   config.Server{Host: "127.0.0.1", Port: "0", WriteTimeout: time.Minute},
		Platform: config.Platform{Variant: "tweet", Timezone: "UTC"},
		Twitter:  config.Twitter{BaseURL: twitterURL, BearerToken: "secret"},
		Assets:   config.Assets{Dir: writeAssets(t)},
		Output: config.Output{
			DumpDir:  filepath.Join(out, "dumps"),
			ImageDir: filepath.Join(out, "images"),
			Sink:     config.SinkLocal,
		},
		Wrapped: config.Wrapped{
			LikeThresholds: []int{1, 5, 15, 10000},
			Watermark:      "@BarkWrapped",
			MaxCloudWords:  50,
		},
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestApp_GenerateOverHTTP(t *testing.T) {
	if testing.Short() {
		t.Skip("renders real images")
	}
	cfg := testConfig(t, fakeTwitter(t).URL)

	a, err := NewApp(context.Background(), cfg, discard())
	require.NoError(t, err)
	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/wrapped/rex", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Outcome   string  `json:"outcome"`
		Posts     int     `json:"posts"`
		Sentiment float64 `json:"sentiment"`
		Images    []struct {
			Kind     string `json:"kind"`
			Location string `json:"location"`
		} `json:"images"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "success", out.Outcome)
	assert.Equal(t, 3, out.Posts)
	assert.Equal(t, 33.33, out.Sentiment)
	require.Len(t, out.Images, 4)

	for _, img := range out.Images {
		f, err := os.Open(img.Location)
		require.NoError(t, err, img.Kind)
		decoded, _, err := image.Decode(f)
		f.Close()
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, imaging.CanvasWidth, imaging.CanvasHeight), decoded.Bounds())
	}

	// images are served back
	img, err := http.Get(srv.URL + "/api/v1/wrapped/rex/images/word_cloud")
	require.NoError(t, err)
	decoded, format, err := image.Decode(img.Body)
	img.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, imaging.CanvasWidth, decoded.Bounds().Dx())

	// second run hits the guard
	resp2, err := http.Post(srv.URL+"/api/v1/wrapped/rex", "application/json", nil)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusConflict, resp2.StatusCode)

	// unknown user
	resp3, err := http.Post(srv.URL+"/api/v1/wrapped/ghost", "application/json", nil)
	require.NoError(t, err)
	resp3.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp3.StatusCode)

	// metrics are exposed
	resp4, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp4.Body)
	resp4.Body.Close()
	assert.Contains(t, string(body), `barkwrapped_wrapped_runs_total{outcome="success"} 1`)
	assert.Contains(t, string(body), `barkwrapped_wrapped_runs_total{outcome="already_processed"} 1`)
}

func TestApp_Probes(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	a, err := NewApp(context.Background(), cfg, discard())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, os.RemoveAll(cfg.Output.DumpDir))
	rec = httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNewApp_MissingAssets(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Assets.Dir = t.TempDir()

	_, err := NewApp(context.Background(), cfg, discard())
	assert.Error(t, err)
}

func TestNewApp_ListenerRequiresBark(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Listener = config.Listener{Enabled: true, ReconnectDelay: time.Second}

	_, err := NewApp(context.Background(), cfg, discard())
	assert.Error(t, err)
}
