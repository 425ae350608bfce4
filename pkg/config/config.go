package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Index   IndexConfig   `yaml:"index"`
}

type ServerConfig struct {
	Addr    string `yaml:"addr"`     // HTTP Listen Address (e.g. :8080)
	TCPAddr string `yaml:"tcp_addr"` // TCP Listen Address (e.g. :9090)
}

type StorageConfig struct {
	Path          string `yaml:"path"` // directory holding points.db and the wal
	WalBufferSize int    `yaml:"wal_buffer_size"`
	WalBatchSize  int    `yaml:"wal_batch_size"`
}

type IndexConfig struct {
	Model            string  `yaml:"model"` // linear | piecewise
	Segments         int     `yaml:"segments"`
	RetrainThreshold int     `yaml:"retrain_threshold"` // single inserts before a refit, 0 disables
	BloomSize        uint    `yaml:"bloom_size"`
	BloomFalseProb   float64 `yaml:"bloom_false_prob"`
	CacheSize        int     `yaml:"cache_size"`
}

var searchPaths = []string{"configs/neurogeo.yaml", "neurogeo.yaml"}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:    ":8080",
			TCPAddr: ":9090",
		},
		Storage: StorageConfig{
			Path:          "neurogeo_data",
			WalBufferSize: 5000,
			WalBatchSize:  500,
		},
		Index: IndexConfig{
			Model:            "linear",
			Segments:         64,
			RetrainThreshold: 10000,
			BloomSize:        100000,
			BloomFalseProb:   0.01,
			CacheSize:        1024,
		},
	}
}

func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		for _, p := range searchPaths {
			data, err := os.ReadFile(p)
			if err == nil {
				if err := yaml.Unmarshal(data, cfg); err != nil {
					return cfg, errors.Wrapf(err, "parse %s", p)
				}
				applyDefaults(cfg)
				return cfg, nil
			}
		}
		applyDefaults(cfg)
		return cfg, nil // no file found: use defaults
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse %s", configPath)
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "neurogeo_data"
	}
	if cfg.Storage.WalBufferSize <= 0 {
		cfg.Storage.WalBufferSize = 5000
	}
	if cfg.Storage.WalBatchSize <= 0 {
		cfg.Storage.WalBatchSize = 500
	}
	if cfg.Index.Model == "" {
		cfg.Index.Model = "linear"
	}
	if cfg.Index.Segments <= 0 {
		cfg.Index.Segments = 64
	}
	if cfg.Index.RetrainThreshold < 0 {
		cfg.Index.RetrainThreshold = 0
	}
	if cfg.Index.BloomSize == 0 {
		cfg.Index.BloomSize = 100000
	}
	if cfg.Index.BloomFalseProb <= 0 || cfg.Index.BloomFalseProb >= 1 {
		cfg.Index.BloomFalseProb = 0.01
	}
	if cfg.Index.CacheSize <= 0 {
		cfg.Index.CacheSize = 1024
	}
}
