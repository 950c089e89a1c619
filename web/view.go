package web

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"imagefactory/fal"
)

// ResultImage is one generated image prepared for display.
type ResultImage struct {
	Index       int
	URL         string
	ContentType string
	DownloadURL string
	ThumbURL    string
}

// View is the render instruction produced from one generate/edit interaction.
// Exactly one of Success/Error is set; Warnings and Raw may accompany either.
type View struct {
	Success  string
	Images   []ResultImage
	Seed     int64
	HasSeed  bool
	Warnings []string
	Error    string
	Raw      string
}

// BuildView reduces an API result or error to a View. It performs no I/O and
// never includes the API key in any text: any occurrence of secret in a
// response body or error message is redacted before display.
func BuildView(result *fal.Result, err error, warnings []string, secret string) View {
	view := View{Warnings: warnings}

	scrub := func(s string) string {
		if secret == "" {
			return s
		}
		return strings.ReplaceAll(s, secret, "[redacted]")
	}

	if err != nil {
		var cfgErr *fal.ConfigError
		var remoteErr *fal.RemoteError
		var transportErr *fal.TransportError
		switch {
		case errors.As(err, &cfgErr):
			view.Error = cfgErr.Reason
		case errors.As(err, &remoteErr):
			view.Error = fmt.Sprintf("API request failed with status %d: %s", remoteErr.StatusCode, scrub(remoteErr.Body))
		case errors.As(err, &transportErr):
			view.Error = "Network error: " + scrub(transportErr.Err.Error())
		default:
			view.Error = "An unexpected error occurred: " + scrub(err.Error())
		}
		return view
	}

	if result == nil {
		return view
	}

	if len(result.Images) == 0 {
		view.Warnings = append(view.Warnings,
			"The API did not return any images. Please try a different prompt or settings.")
		view.Raw = scrub(result.Raw)
		view.Seed = result.Seed
		view.HasSeed = result.Seed > 0
		return view
	}

	for i, img := range result.Images {
		view.Images = append(view.Images, ResultImage{
			Index:       i + 1,
			URL:         img.URL,
			ContentType: img.ContentType,
			DownloadURL: "/api/download?u=" + url.QueryEscape(img.URL),
			ThumbURL:    "/api/thumb?u=" + url.QueryEscape(img.URL),
		})
	}
	view.Success = fmt.Sprintf("Successfully generated %d image(s)!", len(result.Images))
	view.Seed = result.Seed
	view.HasSeed = result.Seed > 0
	return view
}
