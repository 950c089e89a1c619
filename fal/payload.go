package fal

// Dimension and count limits enforced before any payload leaves the app.
// Seedream v4 rejects dimensions outside this range, so out-of-range values
// are clamped rather than bounced back to the user.
const (
	MinDimension = 1024
	MaxDimension = 4096

	MaxImagesPerCall = 6
)

// ImageSize is the image_size object of the Seedream API.
type ImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DefaultSize is used when the resolution of a source image cannot be
// determined. Kept from the original app as a documented fallback.
var DefaultSize = ImageSize{Width: 1920, Height: 1080}

// SizePresetLabels lists the preset labels in the order the form shows them.
var SizePresetLabels = []string{
	"Square (1280x1280)",
	"Portrait (1024x1792)",
	"Landscape (1792x1024)",
}

// SizePresets maps the labels shown in the size selector to concrete dimensions.
var SizePresets = map[string]ImageSize{
	"Square (1280x1280)":    {Width: 1280, Height: 1280},
	"Portrait (1024x1792)":  {Width: 1024, Height: 1792},
	"Landscape (1792x1024)": {Width: 1792, Height: 1024},
}

// GenerationRequest holds the user-level inputs for a text-to-image call.
type GenerationRequest struct {
	Prompt              string
	Size                ImageSize
	NumImages           int
	MaxImages           int
	Seed                int64
	EnableSafetyChecker bool
}

// EditRequest adds the ordered source image URLs for an edit call.
type EditRequest struct {
	GenerationRequest
	ImageURLs []string
}

func clampDim(v int) int {
	if v < MinDimension {
		return MinDimension
	}
	if v > MaxDimension {
		return MaxDimension
	}
	return v
}

// ClampSize constrains both dimensions independently to
// [MinDimension, MaxDimension]. The returned bool reports whether either
// value was altered, so callers can surface a soft warning.
func ClampSize(s ImageSize) (ImageSize, bool) {
	clamped := ImageSize{Width: clampDim(s.Width), Height: clampDim(s.Height)}
	return clamped, clamped != s
}

// ScaleSize multiplies a detected source resolution by factor (2 or 4) and
// clamps the result. The bool reports whether clamping altered the scaled
// value.
func ScaleSize(width, height, factor int) (ImageSize, bool) {
	return ClampSize(ImageSize{Width: width * factor, Height: height * factor})
}

// ClampCount constrains a generation count to [1, MaxImagesPerCall].
func ClampCount(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxImagesPerCall {
		return MaxImagesPerCall
	}
	return n
}

// apiPayload matches the request body of the Seedream v4 endpoints. A seed of
// zero is omitted so the service picks one.
type apiPayload struct {
	Prompt              string    `json:"prompt"`
	ImageSize           ImageSize `json:"image_size"`
	NumImages           int       `json:"num_images"`
	MaxImages           int       `json:"max_images"`
	EnableSafetyChecker bool      `json:"enable_safety_checker"`
	Seed                int64     `json:"seed,omitempty"`
	ImageURLs           []string  `json:"image_urls,omitempty"`
}

// buildPayload normalizes a request into the wire payload. Sizes and counts
// are clamped here regardless of what the handler already did; a seed is
// carried only when strictly positive ("omit" means the service randomizes
// and reports the seed it chose in the response).
func buildPayload(req GenerationRequest, urls []string) apiPayload {
	size, _ := ClampSize(req.Size)
	p := apiPayload{
		Prompt:              req.Prompt,
		ImageSize:           size,
		NumImages:           ClampCount(req.NumImages),
		MaxImages:           ClampCount(req.MaxImages),
		EnableSafetyChecker: req.EnableSafetyChecker,
		ImageURLs:           urls,
	}
	if req.Seed > 0 {
		p.Seed = req.Seed
	}
	return p
}
