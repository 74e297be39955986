// Package core provides shared constants and small helpers for the proximity CLI.
package core

import (
	"os"
	"path/filepath"
	"time"
)

// Provider configuration
const (
	APIBaseURL       = "https://maps.googleapis.com/maps/api"
	APIKeyEnvVar     = "GOOGLE_MAPS_API_KEY"
	EnvPrefix        = "PROXIMITY"
	DefaultUserAgent = "proximity-cli/" + Version
)

// Provider status values consumed by the resolvers.
const (
	StatusOK          = "OK"
	StatusZeroResults = "ZERO_RESULTS"
)

// Search defaults
const (
	DefaultRadiusMeters   = 10_000
	DefaultMaxPages       = 10
	DefaultPageTokenDelay = 2 * time.Second
	DefaultTravelMode     = "walking"
)

// DefaultCityCenter is the reference address geocoded for the city centre.
const DefaultCityCenter = "Gdańsk"

// Snapshot names for the three durable caches.
const (
	GeocodeStore  = "geocode"
	AmenityStore  = "amenity"
	DistanceStore = "distance"
)

// Cache drivers
const (
	CacheDriverFile     = "file"
	CacheDriverSQLite   = "sqlite"
	CacheDriverPostgres = "postgres"
	CacheDriverMemory   = "memory"
)

// CacheRoot returns the default cache directory path.
func CacheRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".proximity", "cache")
}

// ConfigDir returns the directory searched for config.yaml besides the working directory.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".proximity")
}

// Version is the current CLI version.
const Version = "0.3.0"
