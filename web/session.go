package web

import (
	"encoding/gob"
	"net/http"

	"imagefactory/fal"
	"imagefactory/middleware"

	"github.com/gorilla/sessions"
)

// Session keys for the per-session UI state: the optional key override, the
// seed the service last reported, and the result URLs the download/thumb
// proxies are allowed to fetch. All of it is private to one session and goes
// away with the cookie.
const (
	sessionFalKey   = "fal_key"
	sessionLastSeed = "last_seed"
	sessionResults  = "result_urls"
)

func init() {
	gob.Register([]string{})
}

func getSession(r *http.Request) *sessions.Session {
	// A stale or tampered cookie just means a fresh session.
	session, _ := middleware.Store.Get(r, middleware.SessionName)
	return session
}

// sessionKeyOverride returns the fal.ai key the user pasted into this
// session, if any.
func sessionKeyOverride(s *sessions.Session) string {
	if v, ok := s.Values[sessionFalKey].(string); ok {
		return v
	}
	return ""
}

// rememberResult records the reported seed and the returned image URLs so the
// form can reproduce the seed and the proxies only fetch what this session
// generated.
func rememberResult(s *sessions.Session, result *fal.Result) {
	if result == nil {
		return
	}
	if result.Seed > 0 {
		s.Values[sessionLastSeed] = result.Seed
	}
	urls := make([]string, 0, len(result.Images))
	for _, img := range result.Images {
		urls = append(urls, img.URL)
	}
	s.Values[sessionResults] = urls
}

func lastSeed(s *sessions.Session) int64 {
	if v, ok := s.Values[sessionLastSeed].(int64); ok {
		return v
	}
	return 0
}

// urlAllowed reports whether u is one of the URLs this session generated.
func urlAllowed(s *sessions.Session, u string) bool {
	urls, ok := s.Values[sessionResults].([]string)
	if !ok {
		return false
	}
	for _, known := range urls {
		if known == u {
			return true
		}
	}
	return false
}
