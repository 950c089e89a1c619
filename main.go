package main

import (
	"log"
	"net/http"

	"imagefactory/config"
	"imagefactory/fal"
	"imagefactory/imagehost"
	"imagefactory/middleware"
	"imagefactory/prober"
	"imagefactory/web"
)

func main() {
	config.LoadConfig()
	middleware.InitSessionStore()

	handler := web.NewHandler(
		fal.NewClient(config.AppConfig.FalAPIKey),
		prober.New(),
		imagehost.NewNodeImageClient(config.AppConfig.NodeImageAPIKey),
	)

	// Serve static files
	fs := http.FileServer(http.Dir("static"))
	http.Handle("/static/", http.StripPrefix("/static/", fs))

	http.HandleFunc("/login", handler.Login)

	// Everything else sits behind the optional password gate.
	protected := func(h http.HandlerFunc) http.Handler {
		return middleware.WebAuthMiddleware(h)
	}
	http.Handle("/", protected(handler.Index))
	http.Handle("/generate", protected(handler.Generate))
	http.Handle("/edit", protected(handler.Edit))
	http.Handle("/api/download", protected(handler.Download))
	http.Handle("/api/thumb", protected(handler.Thumb))
	http.Handle("/api/probe", protected(handler.Probe))

	addr := config.AppConfig.Settings.ListenAddr
	log.Printf("Starting server on %s...", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("Could not start server: %s\n", err)
	}
}
