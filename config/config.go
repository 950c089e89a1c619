package config

import (
	"encoding/json"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Settings holds optional application settings.
type Settings struct {
	SaveLocalCopy bool   `json:"SAVE_LOCAL_COPY"`
	WebPassword   string `json:"WEB_PASSWORD"`
	SessionSecret string `json:"SESSION_SECRET"`
	ListenAddr    string `json:"LISTEN_ADDR"`
}

// Config holds the entire application configuration. The fal.ai key is a
// fallback; a user may also supply a key interactively, scoped to their
// session.
type Config struct {
	FalAPIKey       string   `json:"FAL_API_KEY"`
	NodeImageAPIKey string   `json:"NODEIMAGE_API_KEY"`
	Settings        Settings `json:"SETTINGS"`
}

// AppConfig is the global configuration instance.
var AppConfig *Config

// LoadConfig loads the configuration from defaults, conf.json, .env, and
// environment variables, each layer overriding the previous one.
func LoadConfig() {
	// 1. Set default values
	AppConfig = &Config{
		Settings: Settings{
			SaveLocalCopy: true,
			SessionSecret: "a_very_long_and_random_secret_string",
			ListenAddr:    ":8080",
		},
	}

	// 2. Load from conf.json
	file, err := os.Open("conf.json")
	if err == nil {
		defer file.Close()
		decoder := json.NewDecoder(file)
		if err := decoder.Decode(AppConfig); err != nil {
			log.Printf("Warning: Could not decode conf.json: %v", err)
		} else {
			log.Println("Loaded configuration from conf.json")
		}
	} else if !os.IsNotExist(err) {
		log.Printf("Warning: Could not open conf.json: %v", err)
	}

	// 3. Load from .env file (will override conf.json)
	godotenv.Load()

	// 4. Load from environment variables (will override everything)
	loadFromEnv()

	log.Println("Configuration loaded successfully.")
}

// loadFromEnv loads configuration from environment variables, overriding
// existing values. The key value itself is never logged.
func loadFromEnv() {
	if key := os.Getenv("FAL_API_KEY"); key != "" {
		AppConfig.FalAPIKey = key
	}
	// FAL_KEY is what the fal.ai docs tell people to export; accept it too.
	if key := os.Getenv("FAL_KEY"); key != "" {
		AppConfig.FalAPIKey = key
	}
	if key := os.Getenv("NODEIMAGE_API_KEY"); key != "" {
		AppConfig.NodeImageAPIKey = key
	}

	if val := os.Getenv("SAVE_LOCAL_COPY"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			AppConfig.Settings.SaveLocalCopy = b
		}
	}
	if pass := os.Getenv("WEB_PASSWORD"); pass != "" {
		AppConfig.Settings.WebPassword = pass
	}
	if secret := os.Getenv("SESSION_SECRET"); secret != "" {
		AppConfig.Settings.SessionSecret = secret
	}
	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		AppConfig.Settings.ListenAddr = addr
	}
}
