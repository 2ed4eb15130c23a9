package commands

import (
	"database/sql"
	"time"

	"forkmap-backend/lib/configutil"
	configsqlite "forkmap-backend/lib/configutil/sqlite"
	"forkmap-backend/lib/serviceutil"
	"forkmap-backend/services/crawler/fetch"
	"forkmap-backend/services/crawler/normalize"
	"forkmap-backend/services/crawler/resolve"
	"forkmap-backend/services/crawler/store"
	"forkmap-backend/services/crawler/store/db"
)

type SourceConfig struct {
	BaseUrl        string `json:"base_url"`
	UserAgent      string `json:"user_agent"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	MaxRetries     int    `json:"max_retries"`
	RateLimitMs    int    `json:"rate_limit_ms"`
}

type GeocoderConfig struct {
	BaseUrl string `json:"base_url"`
}

type NeighborhoodConfig struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Config struct {
	Source         SourceConfig         `json:"source"`
	Geocoder       GeocoderConfig       `json:"geocoder"`
	Database       configsqlite.Struct  `json:"database"`
	Concurrency    int                  `json:"concurrency"`
	Neighborhoods  []NeighborhoodConfig `json:"neighborhoods"`
	CuisineTags    []string             `json:"cuisine_tags"`
	CuisineAliases map[string]string    `json:"cuisine_aliases"`
}

func loadConfig() Config {
	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	return cfg
}

func openStore(cfg Config) (*store.Store, *sql.DB) {
	database, err := cfg.Database.OpenDB(db.Schema)
	if err != nil {
		serviceutil.Fatal("failed to open db", err)
	}
	return store.New(database), database
}

func newFetchClient(cfg Config) *fetch.Client {
	client, err := fetch.NewClient(fetch.Options{
		BaseURL:     cfg.Source.BaseUrl,
		UserAgent:   cfg.Source.UserAgent,
		Timeout:     time.Duration(cfg.Source.TimeoutSeconds) * time.Second,
		MaxRetries:  cfg.Source.MaxRetries,
		MinInterval: time.Duration(cfg.Source.RateLimitMs) * time.Millisecond,
	})
	if err != nil {
		serviceutil.Fatal("failed to initialize fetch client", err)
	}
	return client
}

func newResolver(cfg Config, cache resolve.CacheStore) *resolve.Resolver {
	entries := make([]resolve.Entry, len(cfg.Neighborhoods))
	for i, n := range cfg.Neighborhoods {
		entries[i] = resolve.Entry{
			Name:      n.Name,
			Latitude:  n.Latitude,
			Longitude: n.Longitude,
		}
	}

	var geocoder resolve.Geocoder
	if cfg.Geocoder.BaseUrl != "" {
		userAgent := cfg.Source.UserAgent
		if userAgent == "" {
			userAgent = fetch.DefaultUserAgent
		}
		geocoder = resolve.NewNominatimClient(cfg.Geocoder.BaseUrl, userAgent)
	}

	return resolve.NewResolver(resolve.NewGazetteer(entries), geocoder, cache)
}

func newVocabulary(cfg Config) *normalize.Vocabulary {
	return normalize.NewVocabulary(cfg.CuisineTags, cfg.CuisineAliases)
}
