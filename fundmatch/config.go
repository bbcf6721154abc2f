package fundmatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultConfigFile = "config.json"

// Environment variables read by ApplyEnv. StoreEnvLegacy is the name used by
// the pipelines that produce the embedding artifact.
const (
	StoreEnvLegacy   = "mf_embeddings_path"
	StoreEnv         = "FUNDMATCH_STORE_PATH"
	ModelEnv         = "FUNDMATCH_MODEL_PATH"
	TokenizerEnv     = "FUNDMATCH_TOKENIZER_PATH"
	OrtLibEnv        = "FUNDMATCH_ORT_LIB"
	TopNEnv          = "FUNDMATCH_TOP_N"
	CachePathEnv     = "FUNDMATCH_CACHE_PATH"
	defaultEnvDotenv = ".env"
)

// LoadConfig loads configuration from the given path or the default config.json.
// Files ending in .yaml or .yml are decoded as YAML, everything else as JSON.
// A missing file yields the defaults.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		path = defaultConfigFile
	}
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.ApplyDefaults()
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("decode config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("decode config: %w", err)
		}
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// SaveConfig persists configuration to disk as JSON.
func SaveConfig(path string, cfg Config) error {
	if path == "" {
		path = defaultConfigFile
	}
	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	cfg.ApplyDefaults()
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// LoadDotenv loads variables from the given .env files (default ./.env) into the
// process environment without overriding variables that are already set.
// Missing files are ignored.
func LoadDotenv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{defaultEnvDotenv}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load env file %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overlays environment variables on cfg. FUNDMATCH_STORE_PATH wins
// over mf_embeddings_path when both are set.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(StoreEnvLegacy); v != "" {
		c.StorePath = v
	}
	if v := os.Getenv(StoreEnv); v != "" {
		c.StorePath = v
	}
	if v := os.Getenv(ModelEnv); v != "" {
		c.Embedder.ModelPath = v
	}
	if v := os.Getenv(TokenizerEnv); v != "" {
		c.Embedder.TokenizerPath = v
	}
	if v := os.Getenv(OrtLibEnv); v != "" {
		c.Embedder.OrtDLL = v
	}
	if v := os.Getenv(CachePathEnv); v != "" {
		c.Embedder.CachePath = v
	}
	if v := os.Getenv(TopNEnv); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("%w: %s must be a positive integer, got %q", ErrInvalidArgument, TopNEnv, v)
		}
		c.TopN = n
	}
	return nil
}
