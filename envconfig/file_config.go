package envconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config represents the TOML configuration structure
type Config struct {
	Server struct {
		Host    string   `toml:"host"`
		Origins []string `toml:"origins"`
	} `toml:"server"`

	Engine struct {
		Vocab        string `toml:"vocab"`
		Library      string `toml:"library"`
		EOSToken     string `toml:"eos_token"`
		MaxItems     uint   `toml:"max_items"`
		MaxDFAStates uint   `toml:"max_dfa_states"`
		MaskCache    uint   `toml:"mask_cache"`
		NumParallel  uint   `toml:"num_parallel"`
	} `toml:"engine"`

	Logging struct {
		Debug int `toml:"debug"`
	} `toml:"logging"`
}

var (
	configOnce sync.Once
	config     *Config
	configPath string
)

// GetConfigPaths returns the config file locations searched in order.
// AICI_CONFIG, when set, is the only location.
func GetConfigPaths() []string {
	if path := os.Getenv("AICI_CONFIG"); path != "" {
		return []string{path}
	}

	var paths []string
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		paths = append(paths, filepath.Join(xdgConfig, "aici", "config.toml"))
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "aici", "config.toml"),
			filepath.Join(home, ".aici", "config.toml"),
		)
	}

	return paths
}

// loadConfig loads the first available configuration file
func loadConfig() (*Config, string, error) {
	for _, path := range GetConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			var cfg Config
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return nil, "", fmt.Errorf("error parsing config file %s: %w", path, err)
			}
			return &cfg, path, nil
		}
	}
	return nil, "", nil
}

// GetConfigValue returns the config file value for an environment
// variable key, or the empty string.
func GetConfigValue(key string) string {
	configOnce.Do(func() {
		var err error
		config, configPath, err = loadConfig()
		if err != nil {
			slog.Warn("failed to load config file", "error", err)
		} else if config != nil {
			slog.Debug("loaded config file", "path", configPath)
		}
	})

	if config == nil {
		return ""
	}

	count := func(n uint) string {
		if n > 0 {
			return strconv.FormatUint(uint64(n), 10)
		}
		return ""
	}

	switch key {
	case "AICI_HOST":
		return config.Server.Host
	case "AICI_ORIGINS":
		return strings.Join(config.Server.Origins, ",")
	case "AICI_VOCAB":
		return config.Engine.Vocab
	case "AICI_LIBRARY":
		return config.Engine.Library
	case "AICI_EOS_TOKEN":
		return config.Engine.EOSToken
	case "AICI_MAX_ITEMS":
		return count(config.Engine.MaxItems)
	case "AICI_MAX_DFA_STATES":
		return count(config.Engine.MaxDFAStates)
	case "AICI_MASK_CACHE":
		return count(config.Engine.MaskCache)
	case "AICI_NUM_PARALLEL":
		return count(config.Engine.NumParallel)
	case "AICI_DEBUG":
		if config.Logging.Debug > 0 {
			return strconv.Itoa(config.Logging.Debug)
		}
	}

	return ""
}

// LoadDotEnv loads ~/.aici/.env into the environment. Variables already
// set are left alone. A missing file is not an error.
func LoadDotEnv() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get user home directory: %w", err)
	}

	envPath := filepath.Join(home, ".aici", ".env")
	if _, err := os.Stat(envPath); errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to check if .env file exists: %w", err)
	}

	if err := godotenv.Load(envPath); err != nil {
		return fmt.Errorf("could not load %s: %w", envPath, err)
	}

	return nil
}

// GenerateExampleConfig returns a commented example TOML configuration
func GenerateExampleConfig() string {
	return `# aici configuration file
# Environment variables take precedence over values set here.

[server]
# Network binding address (default: "127.0.0.1:8090")
host = "127.0.0.1:8090"
# Additional allowed CORS origins
origins = ["http://localhost:3000"]

[engine]
# tokenizer.json describing the vocabulary
vocab = "/path/to/tokenizer.json"
# YAML library of named constraints
library = "/path/to/library.yaml"
# Added token used as end of sequence (default: first of </s>, <|endoftext|>, <|eot_id|>, <|im_end|>, <eos>)
eos_token = "</s>"
# Parser items a grammar constraint may create per input byte (default: 200000)
max_items = 200000
# States a compiled regex may have (default: 10000)
max_dfa_states = 10000
# Token sets cached per regex constraint (default: 1024)
mask_cache = 1024
# Sequences evaluated in parallel (default: number of CPUs)
num_parallel = 4

[logging]
# 0 info, 1 debug, 2 trace
debug = 0
`
}
