package web

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"imagefactory/config"
	"imagefactory/fal"
	"imagefactory/imagehost"
	"imagefactory/middleware"
	"imagefactory/prober"

	"github.com/gorilla/sessions"
)

const defaultPrompt = "A majestic lion wearing a crown, sitting on a throne in a futuristic city, cinematic lighting"

// Handler holds the collaborators for the web UI. One user action triggers at
// most one generation/edit call; probes and downloads are independent.
type Handler struct {
	Fal    *fal.Client
	Prober *prober.Prober
	Host   *imagehost.NodeImageClient

	download *http.Client
	thumbs   *thumbCache
}

// NewHandler creates the web handler.
func NewHandler(falClient *fal.Client, p *prober.Prober, host *imagehost.NodeImageClient) *Handler {
	return &Handler{
		Fal:      falClient,
		Prober:   p,
		Host:     host,
		download: &http.Client{Timeout: 60 * time.Second},
		thumbs:   newThumbCache(),
	}
}

// formState carries the form values back into the template so a submit does
// not wipe the user's inputs.
type formState struct {
	Prompt    string
	Preset    string
	SizeMode  string // "preset", "custom" or "source"
	Width     int
	Height    int
	NumImages int
	MaxImages int
	Seed      int64
	Safety    bool
	Scale     int
	ImageURLs string
}

type pageData struct {
	View          View
	Form          formState
	Presets       []string
	HasSessionKey bool
	KeyConfigured bool
}

func defaultForm() formState {
	return formState{
		Prompt:    defaultPrompt,
		Preset:    fal.SizePresetLabels[0],
		SizeMode:  "preset",
		Width:     fal.DefaultSize.Width,
		Height:    fal.DefaultSize.Height,
		NumImages: 1,
		MaxImages: 1,
		Scale:     2,
	}
}

func formFromRequest(r *http.Request) formState {
	form := defaultForm()
	form.Prompt = r.FormValue("prompt")
	if preset := r.FormValue("size_preset"); preset != "" {
		form.Preset = preset
	}
	if mode := r.FormValue("size_mode"); mode != "" {
		form.SizeMode = mode
	}
	if width, err := strconv.Atoi(r.FormValue("width")); err == nil && width > 0 {
		form.Width = width
	}
	if height, err := strconv.Atoi(r.FormValue("height")); err == nil && height > 0 {
		form.Height = height
	}
	if n, err := strconv.Atoi(r.FormValue("num_images")); err == nil && n > 0 {
		form.NumImages = fal.ClampCount(n)
	}
	if n, err := strconv.Atoi(r.FormValue("max_images")); err == nil && n > 0 {
		form.MaxImages = fal.ClampCount(n)
	}
	form.Seed, _ = strconv.ParseInt(r.FormValue("seed"), 10, 64)
	form.Safety = r.FormValue("safety_checker") == "on"
	if scale, err := strconv.Atoi(r.FormValue("scale")); err == nil && (scale == 2 || scale == 4) {
		form.Scale = scale
	}
	form.ImageURLs = r.FormValue("image_urls")
	return form
}

// resolveSize turns the form selection into a concrete size. The bool reports
// whether clamping altered a custom value, which is a warning, not an error.
func resolveSize(form formState) (fal.ImageSize, bool) {
	if form.SizeMode == "custom" {
		return fal.ClampSize(fal.ImageSize{Width: form.Width, Height: form.Height})
	}
	if size, ok := fal.SizePresets[form.Preset]; ok {
		return size, false
	}
	return fal.SizePresets[fal.SizePresetLabels[0]], false
}

// falFor returns the client to use for this session: the pasted session key
// wins over the configured fallback.
func (h *Handler) falFor(session *sessions.Session) *fal.Client {
	if key := sessionKeyOverride(session); key != "" {
		return h.Fal.WithKey(key)
	}
	return h.Fal
}

// storeSessionKey saves a freshly pasted key into the session. The key never
// touches a log line or a template.
func storeSessionKey(r *http.Request, session *sessions.Session) {
	if key := strings.TrimSpace(r.FormValue("fal_key")); key != "" {
		session.Values[sessionFalKey] = key
	}
	if r.FormValue("clear_key") == "on" {
		delete(session.Values, sessionFalKey)
	}
}

func (h *Handler) renderIndex(w http.ResponseWriter, session *sessions.Session, view View, form formState) {
	tmpl, err := template.ParseFiles("templates/index.html")
	if err != nil {
		log.Printf("Error parsing index template: %v", err)
		http.Error(w, "Could not parse template", http.StatusInternalServerError)
		return
	}
	data := pageData{
		View:          view,
		Form:          form,
		Presets:       fal.SizePresetLabels,
		HasSessionKey: sessionKeyOverride(session) != "",
		KeyConfigured: h.Fal.APIKey != "",
	}
	if err := tmpl.Execute(w, data); err != nil {
		log.Printf("Error executing index template: %v", err)
	}
}

// Index serves the form page.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	session := getSession(r)
	form := defaultForm()
	if seed := lastSeed(session); seed > 0 {
		form.Seed = seed
	}
	h.renderIndex(w, session, View{}, form)
}

// Generate handles a text-to-image request.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Only POST method is allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Could not parse form", http.StatusBadRequest)
		return
	}

	session := getSession(r)
	storeSessionKey(r, session)
	form := formFromRequest(r)

	var warnings []string
	size, clamped := resolveSize(form)
	if clamped {
		warnings = append(warnings, fmt.Sprintf(
			"Requested size was outside %d-%d and has been clamped to %dx%d.",
			fal.MinDimension, fal.MaxDimension, size.Width, size.Height))
	}

	log.Printf("Generation request: prompt length %d, size %dx%d, num_images %d",
		len(form.Prompt), size.Width, size.Height, form.NumImages)

	client := h.falFor(session)
	result, err := client.Generate(r.Context(), fal.GenerationRequest{
		Prompt:              form.Prompt,
		Size:                size,
		NumImages:           form.NumImages,
		MaxImages:           form.MaxImages,
		Seed:                form.Seed,
		EnableSafetyChecker: form.Safety,
	})

	h.finish(w, r, session, form, result, err, warnings, client.APIKey)
}

// Edit handles an edit request with source URLs and/or one uploaded file.
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Only POST method is allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(10 << 20); err != nil { // 10 MB
		http.Error(w, "Could not parse multipart form", http.StatusBadRequest)
		return
	}

	session := getSession(r)
	storeSessionKey(r, session)
	form := formFromRequest(r)

	urls := splitURLs(form.ImageURLs)

	var warnings []string
	hostedID, urls, err := h.hostUploadedSource(r, urls)
	if err != nil {
		h.finish(w, r, session, form, nil, err, warnings, h.falFor(session).APIKey)
		return
	}

	size, sizeWarnings := h.resolveEditSize(r.Context(), form, urls)
	warnings = append(warnings, sizeWarnings...)

	log.Printf("Edit request: prompt length %d, %d source URL(s), size %dx%d",
		len(form.Prompt), len(urls), size.Width, size.Height)

	client := h.falFor(session)
	result, callErr := client.Edit(r.Context(), fal.EditRequest{
		GenerationRequest: fal.GenerationRequest{
			Prompt:              form.Prompt,
			Size:                size,
			NumImages:           form.NumImages,
			MaxImages:           form.MaxImages,
			Seed:                form.Seed,
			EnableSafetyChecker: form.Safety,
		},
		ImageURLs: urls,
	})

	if hostedID != "" {
		if derr := h.Host.Delete(r.Context(), hostedID); derr != nil {
			log.Printf("Warning: could not remove hosted edit source: %v", derr)
		}
	}

	h.finish(w, r, session, form, result, callErr, warnings, client.APIKey)
}

// finish records the result in the session, saves the cookie and renders.
func (h *Handler) finish(w http.ResponseWriter, r *http.Request, session *sessions.Session,
	form formState, result *fal.Result, err error, warnings []string, secret string) {
	if err == nil && result != nil {
		rememberResult(session, result)
		if result.Seed > 0 {
			form.Seed = result.Seed
		}
	}
	if serr := session.Save(r, w); serr != nil {
		log.Printf("Error saving session: %v", serr)
	}
	h.renderIndex(w, session, BuildView(result, err, warnings, secret), form)
}

// resolveEditSize picks the output size for an edit: a preset/custom size, or
// the probed source resolution times the chosen scale factor. An unknown
// resolution falls back to the documented 1920x1080 default with a soft
// warning.
func (h *Handler) resolveEditSize(ctx context.Context, form formState, urls []string) (fal.ImageSize, []string) {
	if form.SizeMode != "source" {
		size, clamped := resolveSize(form)
		if clamped {
			return size, []string{fmt.Sprintf(
				"Requested size was outside %d-%d and has been clamped to %dx%d.",
				fal.MinDimension, fal.MaxDimension, size.Width, size.Height)}
		}
		return size, nil
	}

	if len(urls) == 0 {
		return fal.DefaultSize, nil
	}

	res := h.Prober.Probe(ctx, urls[0])
	if !res.Known() {
		return fal.DefaultSize, []string{fmt.Sprintf(
			"Could not detect the source image resolution; falling back to %dx%d.",
			fal.DefaultSize.Width, fal.DefaultSize.Height)}
	}

	size, clamped := fal.ScaleSize(res.Width, res.Height, form.Scale)
	if clamped {
		return size, []string{fmt.Sprintf(
			"Scaled size %dx%d exceeded the limit and has been clamped to %dx%d.",
			res.Width*form.Scale, res.Height*form.Scale, size.Width, size.Height)}
	}
	return size, nil
}

// hostUploadedSource processes an optional uploaded file and hosts it so the
// edit call can reference it by URL. Returns the image host ID for cleanup
// and the URL list with the hosted URL appended.
func (h *Handler) hostUploadedSource(r *http.Request, urls []string) (string, []string, error) {
	file, header, err := r.FormFile("image")
	if err == http.ErrMissingFile {
		return "", urls, nil
	}
	if err != nil {
		return "", urls, fmt.Errorf("could not retrieve image from form: %w", err)
	}
	defer file.Close()

	imgBytes, err := io.ReadAll(file)
	if err != nil {
		return "", urls, fmt.Errorf("could not read image file: %w", err)
	}

	processed, err := processUpload(imgBytes)
	if err != nil {
		return "", urls, fmt.Errorf("could not process uploaded image: %w", err)
	}

	up, err := h.Host.Upload(r.Context(), processed, header.Filename)
	if err != nil {
		return "", urls, err
	}
	log.Printf("Hosted edit source %s (%d bytes)", up.ImageID, len(processed))
	return up.ImageID, append(urls, up.Links.Direct), nil
}

func splitURLs(raw string) []string {
	var urls []string
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			urls = append(urls, line)
		}
	}
	return urls
}

// Download streams one result image with an attachment disposition. Only
// URLs recorded in the session may be fetched through this proxy.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	u := r.URL.Query().Get("u")
	session := getSession(r)
	if u == "" || !urlAllowed(session, u) {
		http.Error(w, "Unknown image", http.StatusNotFound)
		return
	}

	data, contentType, err := h.fetchImage(r.Context(), u)
	if err != nil {
		log.Printf("Error downloading result image: %v", err)
		http.Error(w, "Could not download image", http.StatusBadGateway)
		return
	}

	if config.AppConfig.Settings.SaveLocalCopy {
		saveLocalCopy(data, contentType)
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadFilename(contentType)))
	w.Write(data)
}

// Thumb serves a cached webp thumbnail of a result image for the gallery.
func (h *Handler) Thumb(w http.ResponseWriter, r *http.Request) {
	u := r.URL.Query().Get("u")
	session := getSession(r)
	if u == "" || !urlAllowed(session, u) {
		http.Error(w, "Unknown image", http.StatusNotFound)
		return
	}

	data, ok := h.thumbs.get(u)
	if !ok {
		full, _, err := h.fetchImage(r.Context(), u)
		if err != nil {
			log.Printf("Error fetching image for thumbnail: %v", err)
			http.Error(w, "Could not fetch image", http.StatusBadGateway)
			return
		}
		data, err = makeThumb(full)
		if err != nil {
			log.Printf("Error generating thumbnail: %v", err)
			http.Error(w, "Could not generate thumbnail", http.StatusInternalServerError)
			return
		}
		h.thumbs.put(u, data)
	}

	w.Header().Set("Content-Type", "image/webp")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

// Probe reports the detected resolution of an image URL so the form can
// pre-fill scaled sizes. Failures come back as known=false, never an error.
func (h *Handler) Probe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Only POST method is allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res := h.Prober.Probe(r.Context(), payload.URL)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		prober.Resolution
		Known bool `json:"known"`
	}{res, res.Known()})
}

// Login serves the password gate when WEB_PASSWORD is set.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if config.AppConfig.Settings.WebPassword == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	renderLogin := func(errMsg string) {
		tmpl, err := template.ParseFiles("templates/login.html")
		if err != nil {
			log.Printf("Error parsing login template: %v", err)
			http.Error(w, "Could not parse template", http.StatusInternalServerError)
			return
		}
		tmpl.Execute(w, struct{ Error string }{errMsg})
	}

	if r.Method != http.MethodPost {
		renderLogin("")
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Could not parse form", http.StatusBadRequest)
		return
	}

	if r.FormValue("password") != config.AppConfig.Settings.WebPassword {
		renderLogin("Incorrect password.")
		return
	}

	session := getSession(r)
	session.Values[middleware.UserSessionKey] = true
	if err := session.Save(r, w); err != nil {
		log.Printf("Error saving session: %v", err)
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *Handler) fetchImage(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := h.download.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("bad status: %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

func downloadFilename(contentType string) string {
	return "generated-" + time.Now().Format("20060102150405") + extFor(contentType)
}

// saveLocalCopy archives a downloaded result under images/ when enabled.
func saveLocalCopy(data []byte, contentType string) {
	if err := os.MkdirAll("images", 0755); err != nil {
		log.Printf("Error creating images directory: %v", err)
		return
	}
	filename := "images/" + time.Now().Format("20060102150405000") + extFor(contentType)
	if err := os.WriteFile(filename, data, 0644); err != nil {
		log.Printf("Error saving image to file: %v", err)
		return
	}
	log.Printf("Image saved to %s", filename)
}

func extFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
