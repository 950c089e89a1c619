package web

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"imagefactory/config"
	"imagefactory/fal"
	"imagefactory/imagehost"
	"imagefactory/middleware"
	"imagefactory/prober"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTest(t *testing.T) *Handler {
	t.Helper()
	config.AppConfig = &config.Config{
		Settings: config.Settings{SessionSecret: "session-secret-for-tests"},
	}
	middleware.InitSessionStore()
	return NewHandler(fal.NewClient("test-secret-key"), prober.New(), imagehost.NewNodeImageClient(""))
}

func TestSplitURLs(t *testing.T) {
	urls := splitURLs(" http://a/1.png \n\n\thttp://b/2.png\n")
	assert.Equal(t, []string{"http://a/1.png", "http://b/2.png"}, urls)
	assert.Nil(t, splitURLs("  \n \n"))
}

func TestResolveSize(t *testing.T) {
	size, clamped := resolveSize(formState{SizeMode: "preset", Preset: "Square (1280x1280)"})
	assert.Equal(t, fal.ImageSize{Width: 1280, Height: 1280}, size)
	assert.False(t, clamped)

	size, clamped = resolveSize(formState{SizeMode: "custom", Width: 9999, Height: 10})
	assert.Equal(t, fal.ImageSize{Width: 4096, Height: 1024}, size)
	assert.True(t, clamped)

	size, clamped = resolveSize(formState{SizeMode: "preset", Preset: "no such preset"})
	assert.Equal(t, fal.SizePresets[fal.SizePresetLabels[0]], size)
	assert.False(t, clamped)
}

func TestFormFromRequest(t *testing.T) {
	form := url.Values{
		"prompt":         {"a cat"},
		"size_mode":      {"custom"},
		"width":          {"2048"},
		"height":         {"1024"},
		"num_images":     {"9"},
		"max_images":     {"3"},
		"seed":           {"42"},
		"safety_checker": {"on"},
		"scale":          {"4"},
		"image_urls":     {"http://a/1.png"},
	}
	r := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	require.NoError(t, r.ParseForm())

	got := formFromRequest(r)
	assert.Equal(t, "a cat", got.Prompt)
	assert.Equal(t, "custom", got.SizeMode)
	assert.Equal(t, 2048, got.Width)
	assert.Equal(t, 1024, got.Height)
	assert.Equal(t, 6, got.NumImages, "counts are clamped to 6 at the form boundary")
	assert.Equal(t, 3, got.MaxImages)
	assert.Equal(t, int64(42), got.Seed)
	assert.True(t, got.Safety)
	assert.Equal(t, 4, got.Scale)
}

func TestFormFromRequestBadScale(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader("scale=3"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	require.NoError(t, r.ParseForm())

	assert.Equal(t, 2, formFromRequest(r).Scale, "only 2x and 4x are valid scale factors")
}

func pngServer(t *testing.T, width, height int) *httptest.Server {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))))
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(buf.Bytes())
	}))
}

func TestResolveEditSizeFallsBackOnUnknownResolution(t *testing.T) {
	h := setupTest(t)

	size, warnings := h.resolveEditSize(context.Background(), formState{SizeMode: "source", Scale: 2},
		[]string{"http://127.0.0.1:1/nope.png"})

	assert.Equal(t, fal.DefaultSize, size)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "1920x1080")
}

func TestResolveEditSizeNoURLs(t *testing.T) {
	h := setupTest(t)

	size, warnings := h.resolveEditSize(context.Background(), formState{SizeMode: "source", Scale: 2}, nil)

	assert.Equal(t, fal.DefaultSize, size)
	assert.Empty(t, warnings)
}

func TestResolveEditSizeScalesSource(t *testing.T) {
	h := setupTest(t)
	srv := pngServer(t, 800, 600)
	defer srv.Close()

	size, warnings := h.resolveEditSize(context.Background(), formState{SizeMode: "source", Scale: 2},
		[]string{srv.URL})

	assert.Equal(t, fal.ImageSize{Width: 1600, Height: 1200}, size)
	assert.Empty(t, warnings)
}

func TestResolveEditSizeClampsScaledSource(t *testing.T) {
	h := setupTest(t)
	srv := pngServer(t, 1200, 1200)
	defer srv.Close()

	size, warnings := h.resolveEditSize(context.Background(), formState{SizeMode: "source", Scale: 4},
		[]string{srv.URL})

	assert.Equal(t, fal.ImageSize{Width: 4096, Height: 4096}, size)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "4800x4800")
	assert.Contains(t, warnings[0], "4096x4096")
}

func TestResolveEditSizeUsesPresetWhenNotSourceMode(t *testing.T) {
	h := setupTest(t)

	size, warnings := h.resolveEditSize(context.Background(),
		formState{SizeMode: "preset", Preset: "Portrait (1024x1792)"}, []string{"http://a/1.png"})

	assert.Equal(t, fal.ImageSize{Width: 1024, Height: 1792}, size)
	assert.Empty(t, warnings)
}

func TestDownloadRejectsUnknownURL(t *testing.T) {
	h := setupTest(t)

	r := httptest.NewRequest(http.MethodGet, "/api/download?u="+url.QueryEscape("http://x/1.png"), nil)
	w := httptest.NewRecorder()
	h.Download(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestThumbRejectsUnknownURL(t *testing.T) {
	h := setupTest(t)

	r := httptest.NewRequest(http.MethodGet, "/api/thumb?u="+url.QueryEscape("http://x/1.png"), nil)
	w := httptest.NewRecorder()
	h.Thumb(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProbeEndpoint(t *testing.T) {
	h := setupTest(t)

	srv := pngServer(t, 800, 600)
	defer srv.Close()

	body, err := json.Marshal(map[string]string{"url": srv.URL})
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodPost, "/api/probe", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.Probe(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Width  int  `json:"width"`
		Height int  `json:"height"`
		Known  bool `json:"known"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 800, resp.Width)
	assert.Equal(t, 600, resp.Height)
	assert.True(t, resp.Known)
}

func TestProbeEndpointUnknown(t *testing.T) {
	h := setupTest(t)

	body := []byte(`{"url":"http://127.0.0.1:1/nope.png"}`)
	r := httptest.NewRequest(http.MethodPost, "/api/probe", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.Probe(w, r)

	require.Equal(t, http.StatusOK, w.Code, "a failed probe is a soft result, not an HTTP error")
	var resp struct {
		Known bool `json:"known"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Known)
}

func TestProbeEndpointRejectsGet(t *testing.T) {
	h := setupTest(t)

	r := httptest.NewRequest(http.MethodGet, "/api/probe", nil)
	w := httptest.NewRecorder()
	h.Probe(w, r)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
