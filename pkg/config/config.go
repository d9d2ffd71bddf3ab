// Package config loads knowledgemap settings from a TOML file.
//
// The file lives at $XDG_CONFIG_HOME/knowledgemap/config.toml unless a path
// is given. Missing keys keep their defaults from [Default], and a few
// settings can be overridden by environment variables:
//
//	KNOWLEDGEMAP_API_URL      api.url
//	KNOWLEDGEMAP_API_TOKEN    api.token
//	KNOWLEDGEMAP_REDIS_ADDR   cache.redis.addr (and selects the redis backend)
//	KNOWLEDGEMAP_MONGO_URI    cache.mongo.uri (and selects the mongo backend)
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/knowledgemap/pkg/cache"
	kmerrors "github.com/matzehuels/knowledgemap/pkg/errors"
	"github.com/matzehuels/knowledgemap/pkg/httputil"
	"github.com/matzehuels/knowledgemap/pkg/integrations"
	"github.com/matzehuels/knowledgemap/pkg/layout"
	"github.com/matzehuels/knowledgemap/pkg/route"
	"github.com/matzehuels/knowledgemap/pkg/viewport"
)

// Environment variables read by [Load].
const (
	EnvAPIURL    = "KNOWLEDGEMAP_API_URL"
	EnvAPIToken  = "KNOWLEDGEMAP_API_TOKEN"
	EnvRedisAddr = "KNOWLEDGEMAP_REDIS_ADDR"
	EnvMongoURI  = "KNOWLEDGEMAP_MONGO_URI"
)

// Cache backends.
const (
	BackendNone  = "none"
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendMongo = "mongo"
)

var backends = []string{BackendNone, BackendFile, BackendRedis, BackendMongo}

// Config holds knowledgemap configuration.
type Config struct {
	API      APIConfig      `toml:"api"`
	Layout   LayoutConfig   `toml:"layout"`
	Route    RouteConfig    `toml:"route"`
	Viewport ViewportConfig `toml:"viewport"`
	Cache    CacheConfig    `toml:"cache"`
	Server   ServerConfig   `toml:"server"`
}

// APIConfig points at the graph service.
type APIConfig struct {
	URL     string   `toml:"url"`
	Token   string   `toml:"token"`
	Timeout Duration `toml:"timeout"`
	Retries int      `toml:"retries"`
}

// LayoutConfig overrides layout engine settings. Zero values keep the
// engine defaults.
type LayoutConfig struct {
	Seed            uint64  `toml:"seed"`
	CourseRadius    float64 `toml:"course_radius"`
	ModuleGap       float64 `toml:"module_gap"`
	Margin          float64 `toml:"margin"`
	MinEdgeAngle    float64 `toml:"min_edge_angle"`
	RelaxIterations int     `toml:"relax_iterations"`
	SpiralAttempts  int     `toml:"spiral_attempts"`
}

// RouteConfig overrides edge routing settings.
type RouteConfig struct {
	MinAngle float64 `toml:"min_angle"`
	Bow      float64 `toml:"bow"`
	MaxBow   float64 `toml:"max_bow"`
}

// ViewportConfig sets the initial frame and zoom limits.
type ViewportConfig struct {
	Width    float64 `toml:"width"`
	Height   float64 `toml:"height"`
	MinZoom  float64 `toml:"min_zoom"`
	MaxZoom  float64 `toml:"max_zoom"`
	ZoomStep float64 `toml:"zoom_step"`
}

// CacheConfig selects and configures the layout cache.
type CacheConfig struct {
	Backend string      `toml:"backend"` // "none", "file", "redis", "mongo"
	Dir     string      `toml:"dir"`     // file backend; empty means the user cache dir
	Redis   RedisConfig `toml:"redis"`
	Mongo   MongoConfig `toml:"mongo"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

// MongoConfig configures the mongo backend.
type MongoConfig struct {
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// ServerConfig configures `knowledgemap serve`.
type ServerConfig struct {
	Addr            string   `toml:"addr"`
	SessionTTL      Duration `toml:"session_ttl"`
	ProgressTimeout Duration `toml:"progress_timeout"`
	GraphTTL        Duration `toml:"graph_ttl"` // how long a loaded graph is reused
}

// Duration is a time.Duration written as a string ("10s", "5m") in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// Default returns the default configuration.
func Default() *Config {
	vp := viewport.DefaultOptions()
	return &Config{
		API: APIConfig{
			URL:     integrations.DefaultBaseURL,
			Timeout: Duration{10 * time.Second},
			Retries: httputil.DefaultPolicy.Attempts,
		},
		Layout: LayoutConfig{Seed: layout.DefaultOptions().Seed},
		Viewport: ViewportConfig{
			Width:    800,
			Height:   600,
			MinZoom:  vp.MinZoom,
			MaxZoom:  vp.MaxZoom,
			ZoomStep: vp.ZoomStep,
		},
		Cache: CacheConfig{
			Backend: BackendFile,
			Redis:   RedisConfig{Addr: "localhost:6379", Prefix: "knowledgemap:"},
			Mongo:   MongoConfig{URI: "mongodb://localhost:27017", Database: "knowledgemap", Collection: "cache"},
		},
		Server: ServerConfig{
			Addr:            ":8080",
			SessionTTL:      Duration{30 * time.Minute},
			ProgressTimeout: Duration{10 * time.Second},
			GraphTTL:        Duration{time.Minute},
		},
	}
}

// Dir returns the knowledgemap config directory.
func Dir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "knowledgemap")
}

// DefaultPath returns the config file used when no path is given.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.toml")
}

// Load reads the config at path over the defaults and applies environment
// overrides. An empty path reads [DefaultPath], where a missing file is not
// an error; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides settings from environment variables read by getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvAPIURL); v != "" {
		c.API.URL = v
	}
	if v := getenv(EnvAPIToken); v != "" {
		c.API.Token = v
	}
	if v := getenv(EnvRedisAddr); v != "" {
		c.Cache.Redis.Addr = v
		c.Cache.Backend = BackendRedis
	}
	if v := getenv(EnvMongoURI); v != "" {
		c.Cache.Mongo.URI = v
		c.Cache.Backend = BackendMongo
	}
}

// Validate checks values that would otherwise fail later.
func (c *Config) Validate() error {
	if err := kmerrors.ValidateURL(c.API.URL); err != nil {
		return fmt.Errorf("api.url: %w", err)
	}
	if !slices.Contains(backends, c.Cache.Backend) {
		return kmerrors.New(kmerrors.ErrCodeInvalidInput, "cache.backend: unknown backend %q", c.Cache.Backend)
	}
	if c.API.Retries < 0 {
		return kmerrors.New(kmerrors.ErrCodeInvalidInput, "api.retries must not be negative")
	}
	return nil
}

// Save writes cfg as TOML to path, creating parent directories.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// =============================================================================
// Conversions
// =============================================================================

// LayoutOptions returns the engine options. Unset fields take the engine
// defaults.
func (c *Config) LayoutOptions() *layout.Options {
	return &layout.Options{
		Seed:            c.Layout.Seed,
		CourseRadius:    c.Layout.CourseRadius,
		ModuleGap:       c.Layout.ModuleGap,
		Margin:          c.Layout.Margin,
		MinEdgeAngle:    c.Layout.MinEdgeAngle,
		RelaxIterations: c.Layout.RelaxIterations,
		SpiralAttempts:  c.Layout.SpiralAttempts,
	}
}

// RouteOptions returns the router options.
func (c *Config) RouteOptions() *route.Options {
	return &route.Options{
		MinAngle: c.Route.MinAngle,
		Bow:      c.Route.Bow,
		MaxBow:   c.Route.MaxBow,
	}
}

// ViewportOptions returns the viewport controller options.
func (c *Config) ViewportOptions() *viewport.Options {
	o := viewport.DefaultOptions()
	if c.Viewport.MinZoom > 0 {
		o.MinZoom = c.Viewport.MinZoom
	}
	if c.Viewport.MaxZoom > 0 {
		o.MaxZoom = c.Viewport.MaxZoom
	}
	if c.Viewport.ZoomStep > 0 {
		o.ZoomStep = c.Viewport.ZoomStep
	}
	return &o
}

// RetryPolicy returns the graph service retry policy.
func (c *Config) RetryPolicy() httputil.Policy {
	p := httputil.DefaultPolicy
	if c.API.Retries > 0 {
		p.Attempts = c.API.Retries
	}
	return p
}

// RedisOptions returns the redis backend settings.
func (c *Config) RedisOptions() cache.RedisOptions {
	r := c.Cache.Redis
	return cache.RedisOptions{Addr: r.Addr, Password: r.Password, DB: r.DB, Prefix: r.Prefix}
}

// MongoOptions returns the mongo backend settings.
func (c *Config) MongoOptions() cache.MongoOptions {
	m := c.Cache.Mongo
	return cache.MongoOptions{URI: m.URI, Database: m.Database, Collection: m.Collection}
}
