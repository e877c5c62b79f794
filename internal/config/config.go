package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the feedex configuration.
type Config struct {
	HTTP          HTTPConfig          `yaml:"http"`
	Database      DatabaseConfig      `yaml:"database"`
	Auth          AuthConfig          `yaml:"auth"`
	Storage       StorageConfig       `yaml:"storage"`
	Logging       LoggingConfig       `yaml:"logging"`
	Vectorization VectorizationConfig `yaml:"vectorization"`
	Scoring       ScoringConfig       `yaml:"scoring"`
	Batch         BatchConfig         `yaml:"batch"`
	Feed          FeedConfig          `yaml:"feed"`
	QuickUpdate   QuickUpdateConfig   `yaml:"quick_update"`
	Interactions  map[string]float64  `yaml:"interactions"` // type -> fold weight
	Search        SearchConfig        `yaml:"search"`
	Events        EventsConfig        `yaml:"events"`
	Health        HealthConfig        `yaml:"health"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, memory (default: redis)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
	// PostingThreshold is the minimum dimension value indexed for candidate lookup.
	PostingThreshold float64 `yaml:"posting_threshold"`
}

// VectorizationConfig describes the item feature space.
type VectorizationConfig struct {
	// VectorDimension is optional; when set it must match the derived dimension.
	VectorDimension int      `yaml:"vector_dimension"`
	BPMMin          float64  `yaml:"bpm_min"`
	BPMMax          float64  `yaml:"bpm_max"`
	Genres          []string `yaml:"genres"`
	Emotions        []string `yaml:"emotions"`
	Instruments     []string `yaml:"instruments"`
	Kinds           []string `yaml:"kinds"`
	HashBuckets     int      `yaml:"hash_buckets"`
}

// Dimension returns the vector length implied by the vocabularies.
func (v VectorizationConfig) Dimension() int {
	return 1 + len(v.Genres) + len(v.Emotions) + len(v.Instruments) + len(v.Kinds) + v.HashBuckets
}

// ScoringConfig holds the ranking weights.
type ScoringConfig struct {
	SimilarityWeight float64 `yaml:"similarity_weight"`
	FollowingWeight  float64 `yaml:"following_weight"`
	NoveltyWeight    float64 `yaml:"novelty_weight"`
	HalfLifeHours    float64 `yaml:"novelty_half_life_hours"`
	MaxNoveltyBonus  float64 `yaml:"novelty_max_bonus"`
	VisibilityFactor float64 `yaml:"visibility_factor"`
	PenaltyFloor     float64 `yaml:"penalty_floor"`
}

// BatchConfig holds batch recompute settings.
type BatchConfig struct {
	Interval             time.Duration `yaml:"interval"`
	InitialDelay         time.Duration `yaml:"initial_delay"`
	BatchSize            int           `yaml:"interaction_batch_size"`
	LearningRate         float64       `yaml:"learning_rate"`
	HotThreshold         float64       `yaml:"hot_threshold"`
	CandidateLimit       int           `yaml:"candidate_limit"`
	Parallelism          int           `yaml:"parallelism"`
	RecomputeAllWhenIdle *bool         `yaml:"recompute_all_when_idle"`
}

// FeedConfig holds materialized feed settings.
type FeedConfig struct {
	Size            int `yaml:"size"`
	DefaultPageSize int `yaml:"default_page_size"`
	MaxPageSize     int `yaml:"max_page_size"`
}

// QuickUpdateConfig holds event-path settings.
type QuickUpdateConfig struct {
	LearningRate        float64 `yaml:"learning_rate"`
	SimilarHotThreshold float64 `yaml:"similar_hot_threshold"`
	SimilarInject       int     `yaml:"similar_inject"`
	FollowedInject      int     `yaml:"followed_inject"`
	DefaultScore        float64 `yaml:"default_score"`
	RevertEpsilon       float64 `yaml:"revert_epsilon"`
}

// SearchConfig holds hybrid search settings.
type SearchConfig struct {
	CandidateLimit int     `yaml:"candidate_limit"`
	TextWeight     float64 `yaml:"text_weight"`
	PersonalWeight float64 `yaml:"personal_weight"`
}

// EventsConfig holds the broker consumer settings.
type EventsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	URL        string `yaml:"url"`
	Topic      string `yaml:"topic"`
	QueueGroup string `yaml:"queue_group"`
	Durable    string `yaml:"durable"`
	// Subjects are the routing patterns bound to the stream.
	Subjects []string `yaml:"subjects"`
}

// HealthConfig holds health check thresholds.
type HealthConfig struct {
	MaxPending int64 `yaml:"max_pending"` // 0 = unlimited
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse expands env variables in data, decodes it, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
//
//nolint:gocyclo // flat list of defaults
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "redis"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "feedex:"
	}

	v := &c.Vectorization
	if v.BPMMin == 0 && v.BPMMax == 0 {
		v.BPMMin, v.BPMMax = 60, 200
	}
	if v.Genres == nil {
		v.Genres = DefaultGenres()
	}
	if v.Emotions == nil {
		v.Emotions = DefaultEmotions()
	}
	if v.Instruments == nil {
		v.Instruments = DefaultInstruments()
	}
	if v.Kinds == nil {
		v.Kinds = DefaultKinds()
	}
	if v.HashBuckets == 0 {
		v.HashBuckets = 128
	}

	s := &c.Scoring
	if s.SimilarityWeight == 0 && s.FollowingWeight == 0 && s.NoveltyWeight == 0 {
		s.SimilarityWeight, s.FollowingWeight, s.NoveltyWeight = 1.0, 0.5, 0.2
	}
	if s.HalfLifeHours <= 0 {
		s.HalfLifeHours = 48
	}
	if s.MaxNoveltyBonus == 0 {
		s.MaxNoveltyBonus = 1.0
	}
	if s.VisibilityFactor == 0 {
		s.VisibilityFactor = 0.3
	}
	if s.PenaltyFloor == 0 {
		s.PenaltyFloor = -1000
	}

	b := &c.Batch
	if b.Interval <= 0 {
		b.Interval = 5 * time.Minute
	}
	if b.InitialDelay <= 0 {
		b.InitialDelay = 10 * time.Second
	}
	if b.BatchSize <= 0 {
		b.BatchSize = 1000
	}
	if b.LearningRate == 0 {
		b.LearningRate = 0.05
	}
	if b.HotThreshold == 0 {
		b.HotThreshold = 0.1
	}
	if b.CandidateLimit <= 0 {
		b.CandidateLimit = 1000
	}
	if b.Parallelism <= 0 {
		b.Parallelism = 4
	}
	if b.RecomputeAllWhenIdle == nil {
		yes := true
		b.RecomputeAllWhenIdle = &yes
	}

	if c.Feed.Size <= 0 {
		c.Feed.Size = 200
	}
	if c.Feed.DefaultPageSize <= 0 {
		c.Feed.DefaultPageSize = 20
	}
	if c.Feed.MaxPageSize <= 0 {
		c.Feed.MaxPageSize = 100
	}

	q := &c.QuickUpdate
	if q.LearningRate == 0 {
		q.LearningRate = 0.1
	}
	if q.SimilarHotThreshold == 0 {
		q.SimilarHotThreshold = 0.9
	}
	if q.SimilarInject <= 0 {
		q.SimilarInject = 10
	}
	if q.FollowedInject <= 0 {
		q.FollowedInject = 15
	}
	if q.DefaultScore == 0 {
		q.DefaultScore = 1.0
	}
	if q.RevertEpsilon <= 0 {
		q.RevertEpsilon = 1e-9
	}

	if c.Search.CandidateLimit <= 0 {
		c.Search.CandidateLimit = 500
	}
	if c.Search.TextWeight == 0 && c.Search.PersonalWeight == 0 {
		c.Search.TextWeight, c.Search.PersonalWeight = 0.5, 0.5
	}

	e := &c.Events
	if e.Topic == "" {
		e.Topic = "sword_events"
	}
	if e.QueueGroup == "" {
		e.QueueGroup = "feedex"
	}
	if e.Durable == "" {
		e.Durable = "feedex_consumer"
	}
	if len(e.Subjects) == 0 {
		e.Subjects = []string{"user.interaction.*", "sample.lifecycle.*", "user.lifecycle.*"}
	}
}

// Validate checks the configuration for correctness.
//
//nolint:gocyclo // flat list of checks
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "redis":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required")
		}
	case "memory":
	default:
		return fmt.Errorf("database.driver must be \"redis\" or \"memory\", got %q", c.Database.Driver)
	}

	v := c.Vectorization
	if v.BPMMax <= v.BPMMin {
		return fmt.Errorf("vectorization.bpm_max (%v) must exceed bpm_min (%v)", v.BPMMax, v.BPMMin)
	}
	if v.HashBuckets < 0 {
		return fmt.Errorf("vectorization.hash_buckets must be >= 0, got %d", v.HashBuckets)
	}
	if v.VectorDimension != 0 && v.VectorDimension != v.Dimension() {
		return fmt.Errorf(
			"vectorization.vector_dimension is %d but vocabularies and hash buckets imply %d",
			v.VectorDimension, v.Dimension(),
		)
	}

	if c.Scoring.VisibilityFactor < 0 || c.Scoring.VisibilityFactor > 1 {
		return fmt.Errorf("scoring.visibility_factor must be in [0,1], got %v", c.Scoring.VisibilityFactor)
	}
	if lr := c.Batch.LearningRate; lr <= 0 || lr >= 1 {
		return fmt.Errorf("batch.learning_rate must be in (0,1), got %v", lr)
	}
	if lr := c.QuickUpdate.LearningRate; lr <= 0 || lr >= 1 {
		return fmt.Errorf("quick_update.learning_rate must be in (0,1), got %v", lr)
	}
	if c.Feed.DefaultPageSize > c.Feed.MaxPageSize {
		return fmt.Errorf("feed.default_page_size (%d) exceeds max_page_size (%d)",
			c.Feed.DefaultPageSize, c.Feed.MaxPageSize)
	}
	for name := range c.Interactions {
		if !knownInteraction(name) {
			return fmt.Errorf("interactions.%s: unknown interaction type", name)
		}
	}
	if c.Events.Enabled && c.Events.URL == "" {
		return fmt.Errorf("events.url is required when events are enabled")
	}
	return nil
}

func knownInteraction(name string) bool {
	switch name {
	case "like", "dislike", "share", "comment", "add_to_board", "follow", "play", "skip":
		return true
	}
	return false
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
