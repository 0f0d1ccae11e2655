package config

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/luoyjx/jsoncrdt/patch"
)

// Config represents the server configuration
type Config struct {
	// Server settings
	ServerPort int    `json:"server_port" yaml:"server_port"`
	HTTPPort   int    `json:"http_port" yaml:"http_port"`
	Actor      string `json:"actor" yaml:"actor"`

	// Data storage settings
	DataDir   string `json:"data_dir" yaml:"data_dir"`
	OpLogPath string `json:"oplog_path" yaml:"oplog_path"`

	// Snapshot cache settings (cache.New; empty RedisAddr disables caching)
	RedisAddr string        `json:"redis_addr" yaml:"redis_addr"`
	RedisDB   int           `json:"redis_db" yaml:"redis_db"`
	CacheTTL  time.Duration `json:"cache_ttl" yaml:"cache_ttl"`

	// Replication settings
	Peers        []string      `json:"peers" yaml:"peers"`
	SyncInterval time.Duration `json:"sync_interval" yaml:"sync_interval"`

	// Document engine settings (spec §5 resource limits)
	MaxDepth           int           `json:"max_depth" yaml:"max_depth"`
	LCSCellCap         int           `json:"lcs_cell_cap" yaml:"lcs_cell_cap"`
	CompactionInterval time.Duration `json:"compaction_interval" yaml:"compaction_interval"`
	PatchSemantics     string        `json:"patch_semantics" yaml:"patch_semantics"` // "sequential", "base"
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "localhost"
	}

	return &Config{
		// Server settings
		ServerPort: 6379,
		HTTPPort:   8083,
		Actor:      fmt.Sprintf("%s-%d", hostname, os.Getpid()),

		// Data storage settings
		DataDir:   "./data",
		OpLogPath: "./data/oplog.bolt",

		// Snapshot cache settings
		RedisAddr: "",
		RedisDB:   0,
		CacheTTL:  5 * time.Minute,

		// Replication settings
		Peers:        []string{},
		SyncInterval: 5 * time.Second,

		// Document engine settings
		MaxDepth:           16384,
		LCSCellCap:         1 << 20,
		CompactionInterval: 60 * time.Second,
		PatchSemantics:     "sequential",
	}
}

// LoadFromFile loads configuration from a JSON or YAML file
func LoadFromFile(filename string) (*Config, error) {
	config := DefaultConfig()

	if filename == "" {
		return config, nil
	}

	// Check if file exists
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return config, fmt.Errorf("config file does not exist: %s", filename)
	}

	// Read file content
	content, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %v", err)
	}

	// Determine file format and parse
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".json":
		if err := json.Unmarshal(content, config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %v", err)
		}
	case ".yaml", ".yml":
		// For now, we'll parse YAML as JSON (simplified)
		if err := json.Unmarshal(content, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %v", err)
		}
	default:
		// Try to parse as JSON by default
		if err := json.Unmarshal(content, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file (unknown format): %v", err)
		}
	}

	return config, nil
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv(config *Config) {
	if val := os.Getenv("JSONCRDT_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			config.ServerPort = port
		}
	}

	if val := os.Getenv("JSONCRDT_HTTP_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			config.HTTPPort = port
		}
	}

	if val := os.Getenv("JSONCRDT_ACTOR"); val != "" {
		config.Actor = val
	}

	if val := os.Getenv("JSONCRDT_DATA_DIR"); val != "" {
		config.DataDir = val
	}

	if val := os.Getenv("JSONCRDT_OPLOG_PATH"); val != "" {
		config.OpLogPath = val
	}

	if val := os.Getenv("JSONCRDT_REDIS_ADDR"); val != "" {
		config.RedisAddr = val
	}

	if val := os.Getenv("JSONCRDT_REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			config.RedisDB = db
		}
	}

	if val := os.Getenv("JSONCRDT_CACHE_TTL"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			config.CacheTTL = duration
		}
	}

	if val := os.Getenv("JSONCRDT_PEERS"); val != "" {
		config.Peers = strings.Split(val, ",")
	}

	if val := os.Getenv("JSONCRDT_SYNC_INTERVAL"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			config.SyncInterval = duration
		}
	}

	if val := os.Getenv("JSONCRDT_MAX_DEPTH"); val != "" {
		if depth, err := strconv.Atoi(val); err == nil {
			config.MaxDepth = depth
		}
	}

	if val := os.Getenv("JSONCRDT_LCS_CELL_CAP"); val != "" {
		if cap, err := strconv.Atoi(val); err == nil {
			config.LCSCellCap = cap
		}
	}

	if val := os.Getenv("JSONCRDT_PATCH_SEMANTICS"); val != "" {
		config.PatchSemantics = val
	}
}

// SaveToFile saves the configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %v", err)
	}

	// Marshal to JSON with indentation
	content, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %v", err)
	}

	// Write to file
	if err := ioutil.WriteFile(filename, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %v", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid server port: %d", c.ServerPort)
	}

	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	if c.Actor == "" {
		return fmt.Errorf("actor cannot be empty")
	}

	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	if c.RedisDB < 0 || c.RedisDB > 15 {
		return fmt.Errorf("invalid Redis DB: %d (must be 0-15)", c.RedisDB)
	}

	if c.SyncInterval <= 0 {
		return fmt.Errorf("sync interval must be positive")
	}

	if c.MaxDepth <= 0 {
		return fmt.Errorf("max depth must be positive")
	}

	if c.LCSCellCap < 0 {
		return fmt.Errorf("LCS cell cap cannot be negative")
	}

	if c.CompactionInterval <= 0 {
		return fmt.Errorf("compaction interval must be positive")
	}

	if _, err := c.Semantics(); err != nil {
		return err
	}

	return nil
}

// Semantics parses PatchSemantics into the patch package's enum.
func (c *Config) Semantics() (patch.Semantics, error) {
	switch c.PatchSemantics {
	case "sequential", "":
		return patch.SemanticsSequential, nil
	case "base":
		return patch.SemanticsBase, nil
	default:
		return 0, fmt.Errorf("invalid patch semantics: %s (valid: sequential, base)", c.PatchSemantics)
	}
}

// GetAddress returns the server address
func (c *Config) GetAddress() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}

// GetHTTPAddress returns the address the snapshot-sync HTTP endpoint
// listens on (see cmd/jsoncrdtd).
func (c *Config) GetHTTPAddress() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetOpLogPath returns OpLogPath when it is absolute; otherwise it
// returns oplog.bolt under DataDir.
func (c *Config) GetOpLogPath() string {
	if filepath.IsAbs(c.OpLogPath) {
		return c.OpLogPath
	}
	return filepath.Join(c.DataDir, "oplog.bolt")
}

// GetPersistencePath returns the path of the snapshot store file,
// store.bolt under DataDir.
func (c *Config) GetPersistencePath() string {
	return filepath.Join(c.DataDir, "store.bolt")
}

// String returns a string representation of the config
func (c *Config) String() string {
	content, _ := json.MarshalIndent(c, "", "  ")
	return string(content)
}
