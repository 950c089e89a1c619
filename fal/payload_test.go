package fal

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampSize(t *testing.T) {
	tests := []struct {
		name    string
		in      ImageSize
		want    ImageSize
		clamped bool
	}{
		{"within range", ImageSize{Width: 1280, Height: 1280}, ImageSize{Width: 1280, Height: 1280}, false},
		{"lower bound", ImageSize{Width: 1024, Height: 1024}, ImageSize{Width: 1024, Height: 1024}, false},
		{"upper bound", ImageSize{Width: 4096, Height: 4096}, ImageSize{Width: 4096, Height: 4096}, false},
		{"below range", ImageSize{Width: 800, Height: 600}, ImageSize{Width: 1024, Height: 1024}, true},
		{"above range", ImageSize{Width: 6000, Height: 6000}, ImageSize{Width: 4096, Height: 4096}, true},
		{"mixed", ImageSize{Width: 512, Height: 5000}, ImageSize{Width: 1024, Height: 4096}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, clamped := ClampSize(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.clamped, clamped)
		})
	}
}

func TestScaleSize(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		factor        int
		want          ImageSize
		clamped       bool
	}{
		{"2x within range", 800, 600, 2, ImageSize{Width: 1600, Height: 1200}, false},
		{"2x clamped", 3000, 3000, 2, ImageSize{Width: 4096, Height: 4096}, true},
		{"4x within range", 800, 600, 4, ImageSize{Width: 3200, Height: 2400}, false},
		{"2x clamped up", 500, 400, 2, ImageSize{Width: 1024, Height: 1024}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, clamped := ScaleSize(tt.width, tt.height, tt.factor)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.clamped, clamped)
		})
	}
}

func TestClampCount(t *testing.T) {
	assert.Equal(t, 1, ClampCount(0))
	assert.Equal(t, 1, ClampCount(-3))
	assert.Equal(t, 4, ClampCount(4))
	assert.Equal(t, 6, ClampCount(9))
}

func payloadFields(t *testing.T, p apiPayload) map[string]any {
	t.Helper()
	data, err := json.Marshal(p)
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	return fields
}

func TestBuildPayloadSeedRule(t *testing.T) {
	req := GenerationRequest{Prompt: "p", Size: ImageSize{Width: 1280, Height: 1280}, NumImages: 1, MaxImages: 1}

	for _, seed := range []int64{-5, 0} {
		req.Seed = seed
		fields := payloadFields(t, buildPayload(req, nil))
		_, present := fields["seed"]
		assert.False(t, present, "seed %d must be omitted", seed)
	}

	req.Seed = 42
	fields := payloadFields(t, buildPayload(req, nil))
	assert.Equal(t, float64(42), fields["seed"])
}

func TestBuildPayloadClampsEverything(t *testing.T) {
	p := buildPayload(GenerationRequest{
		Prompt:    "p",
		Size:      ImageSize{Width: 10, Height: 9999},
		NumImages: 0,
		MaxImages: 99,
	}, nil)
	assert.Equal(t, ImageSize{Width: 1024, Height: 4096}, p.ImageSize)
	assert.Equal(t, 1, p.NumImages)
	assert.Equal(t, 6, p.MaxImages)
}

func TestBuildPayloadImageURLs(t *testing.T) {
	fields := payloadFields(t, buildPayload(GenerationRequest{Prompt: "p", Size: ImageSize{Width: 1280, Height: 1280}, NumImages: 1, MaxImages: 1}, nil))
	_, present := fields["image_urls"]
	assert.False(t, present, "text-to-image payload must not carry image_urls")

	urls := []string{"http://a/1.png", "http://b/2.png"}
	fields = payloadFields(t, buildPayload(GenerationRequest{Prompt: "p", Size: ImageSize{Width: 1280, Height: 1280}, NumImages: 1, MaxImages: 1}, urls))
	assert.Equal(t, []any{"http://a/1.png", "http://b/2.png"}, fields["image_urls"])
}

func TestSizePresets(t *testing.T) {
	for _, label := range SizePresetLabels {
		size, ok := SizePresets[label]
		require.True(t, ok, "label %q missing from preset table", label)
		_, clamped := ClampSize(size)
		assert.False(t, clamped, "preset %q must already be in range", label)
	}
}
