package config

import "github.com/caarlos0/env/v6"

type Config struct {
	// Feed configuration
	Feed struct {
		// Upstream listings endpoint
		URL string `env:"FEED_URL"`

		// Optional api_key query parameter appended to the feed URL
		APIKey string `env:"FEED_API_KEY"`

		// Timeout for the feed request and every image download (in seconds)
		TimeoutSeconds int `env:"FEED_TIMEOUT" envDefault:"30"`
	}

	Storage struct {
		// Path to the sqlite database file
		DatabasePath string `env:"DATABASE_PATH" envDefault:"database/orbisync.db"`

		// Root directory for downloaded listing images
		ImagesDir string `env:"IMAGES_DIR" envDefault:"storage/images"`
	}

	Sync struct {
		// Whether to download and reconcile listing images
		DownloadImages bool `env:"SYNC_DOWNLOAD_IMAGES" envDefault:"true"`

		// Whether to record per-field change history on updates
		TrackChanges bool `env:"SYNC_TRACK_CHANGES" envDefault:"true"`
	}
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
