// Package config loads the daemon configuration from the environment
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	defaultGatewayURL  = "http://localhost:9000/catalog"
	defaultSections    = "roughs,jams,at-home"
	defaultReleasesDir = "releases"
	defaultListenAddr  = ":8080"
)

// AppConfig holds application configuration
type AppConfig struct {
	logger      *zap.Logger
	gatewayURL  string
	sections    []string
	releasesDir string
	listenAddr  string
	musicDir    string
}

// NewAppConfig creates a new application configuration instance
func NewAppConfig(logger *zap.Logger) *AppConfig {
	// A .env next to the binary is convenient for development; absence is fine
	if err := godotenv.Load(); err == nil {
		logger.Debug("Loaded .env file")
	}

	gatewayURL := envOrDefault("JUKEBOX_GATEWAY_URL", defaultGatewayURL)

	sections := make([]string, 0, 3)
	for _, s := range strings.Split(envOrDefault("JUKEBOX_SECTIONS", defaultSections), ",") {
		if s = strings.TrimSpace(s); s != "" {
			sections = append(sections, s)
		}
	}

	releasesDir := envOrDefault("JUKEBOX_RELEASES_DIR", defaultReleasesDir)
	listenAddr := envOrDefault("JUKEBOX_LISTEN_ADDR", defaultListenAddr)
	musicDir := os.ExpandEnv(os.Getenv("JUKEBOX_MUSIC_DIR"))

	logger.Info("Configuration loaded",
		zap.String("gatewayURL", gatewayURL),
		zap.Strings("sections", sections),
		zap.String("releasesDir", releasesDir),
		zap.String("listenAddr", listenAddr),
		zap.String("musicDir", musicDir))

	return &AppConfig{
		logger:      logger,
		gatewayURL:  gatewayURL,
		sections:    sections,
		releasesDir: releasesDir,
		listenAddr:  listenAddr,
		musicDir:    musicDir,
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// GatewayURL returns the catalog gateway base URL
func (c *AppConfig) GatewayURL() string {
	return c.gatewayURL
}

// Sections returns the standalone-track directories to load
func (c *AppConfig) Sections() []string {
	return c.sections
}

// ReleasesDir returns the catalog directory holding release subdirectories
func (c *AppConfig) ReleasesDir() string {
	return c.releasesDir
}

// ListenAddr returns the HTTP listen address
func (c *AppConfig) ListenAddr() string {
	return c.listenAddr
}

// MusicDir returns the local library root, empty when the gateway serves the
// catalog
func (c *AppConfig) MusicDir() string {
	return c.musicDir
}
