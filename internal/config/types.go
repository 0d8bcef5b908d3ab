// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import "time"

// AppConfig is the resolved daemon configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	DataDir  string `yaml:"dataDir"`
	LogLevel string `yaml:"logLevel"`

	Server    ServerConfig    `yaml:"server"`
	Player    PlayerConfig    `yaml:"player"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Provider  ProviderConfig  `yaml:"provider"`
	Cache     CacheConfig     `yaml:"cache"`
	Redis     RedisConfig     `yaml:"redis"`
	Bus       BusConfig       `yaml:"bus"`
	Resume    ResumeConfig    `yaml:"resume"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	ListenAddr      string        `yaml:"listenAddr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// RateLimit is the per-client request budget per minute; 0 disables.
	RateLimit      int      `yaml:"rateLimit"`
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
	TLSCert        string   `yaml:"tlsCert,omitempty"`
	TLSKey         string   `yaml:"tlsKey,omitempty"`
	// TLSAuto generates a self-signed pair under the data dir when no
	// cert and key are configured.
	TLSAuto bool `yaml:"tlsAuto,omitempty"`
}

// PlayerConfig is applied live on reload.
type PlayerConfig struct {
	MaxSessions       int           `yaml:"maxSessions"`
	IdleTimeout       time.Duration `yaml:"idleTimeout"`
	ControlsHideDelay time.Duration `yaml:"controlsHideDelay"`
	ResumeMinSeconds  float64       `yaml:"resumeMinSeconds"`
	ResumeTailSeconds float64       `yaml:"resumeTailSeconds"`
}

type CatalogConfig struct {
	// Backend is "memory" or "sqlite".
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path,omitempty"`
	SeedFile string `yaml:"seedFile,omitempty"`
}

type ProviderConfig struct {
	// Kind is "catalog" or "http".
	Kind             string        `yaml:"kind"`
	BaseURL          string        `yaml:"baseUrl,omitempty"`
	Token            string        `yaml:"token,omitempty"`
	Timeout          time.Duration `yaml:"timeout"`
	RPS              float64       `yaml:"rps"`
	Burst            int           `yaml:"burst"`
	BreakerThreshold int           `yaml:"breakerThreshold"`
	BreakerReset     time.Duration `yaml:"breakerReset"`
}

type CacheConfig struct {
	// Backend is "memory", "redis" or "none".
	Backend string        `yaml:"backend"`
	TTL     time.Duration `yaml:"ttl"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix,omitempty"`
}

type BusConfig struct {
	// Backend is "memory" or "redis".
	Backend string `yaml:"backend"`
}

type ResumeConfig struct {
	// Backend is "memory", "sqlite" or "badger".
	Backend string        `yaml:"backend"`
	TTL     time.Duration `yaml:"ttl"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint,omitempty"`
	SamplingRate float64 `yaml:"samplingRate"`
	Environment  string  `yaml:"environment,omitempty"`
}

// Default returns the built-in defaults.
func Default() AppConfig {
	return AppConfig{
		DataDir:  "data",
		LogLevel: "info",
		Server: ServerConfig{
			ListenAddr:      ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     2 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       600,
		},
		Player: PlayerConfig{
			MaxSessions:       256,
			IdleTimeout:       10 * time.Minute,
			ControlsHideDelay: 3 * time.Second,
			ResumeMinSeconds:  10,
			ResumeTailSeconds: 30,
		},
		Catalog: CatalogConfig{Backend: "sqlite"},
		Provider: ProviderConfig{
			Kind:             "catalog",
			Timeout:          5 * time.Second,
			RPS:              20,
			Burst:            40,
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
		},
		Cache:  CacheConfig{Backend: "memory", TTL: 5 * time.Minute},
		Redis:  RedisConfig{Prefix: "streamplay:"},
		Bus:    BusConfig{Backend: "memory"},
		Resume: ResumeConfig{Backend: "badger", TTL: 90 * 24 * time.Hour},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			SamplingRate: 0.1,
			Environment:  "production",
		},
	}
}
