package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr     string `yaml:"addr"`
	LogLevel string `yaml:"log_level"`

	Backend       string `yaml:"backend"`
	Model         string `yaml:"model"`
	ModelsDir     string `yaml:"models_dir"`
	ModelsBaseURL string `yaml:"models_base_url"`
	AutoDownload  bool   `yaml:"auto_download"`
	Binary        string `yaml:"binary"`
	WhisperCppDir string `yaml:"whisper_cpp_dir"`

	Threads    int    `yaml:"threads"`
	UseGPU     bool   `yaml:"use_gpu"`
	Language   string `yaml:"language"`
	Format     string `yaml:"format"`
	TimeoutSec int    `yaml:"timeout_sec"`

	MaxUploadMB        int `yaml:"max_upload_mb"`
	DownloadTimeoutSec int `yaml:"download_timeout_sec"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Addr:        ":8080",
		LogLevel:    "info",
		Backend:     "auto",
		Model:       "base",
		Language:    "auto",
		Format:      "txt",
		MaxUploadMB: 100,
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch v {
		case "0", "false", "no", "off", "False", "FALSE":
			return false
		default:
			return true
		}
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Load layers the defaults, the YAML file named by WHISPER_CONFIG and the
// environment, in that order.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv("WHISPER_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Addr = getenv("WHISPER_GO_ADDR", c.Addr)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)
	c.Backend = getenv("WHISPER_BACKEND", c.Backend)
	c.Model = getenv("WHISPER_MODEL_PATH", c.Model)
	c.ModelsDir = getenv("WHISPER_MODELS_DIR", c.ModelsDir)
	c.ModelsBaseURL = getenv("WHISPER_MODELS_BASE_URL", c.ModelsBaseURL)
	c.AutoDownload = getenvBool("WHISPER_AUTO_DOWNLOAD", c.AutoDownload)
	c.Binary = getenv("WHISPER_BINARY", c.Binary)
	c.WhisperCppDir = getenv("WHISPER_CPP_DIR", c.WhisperCppDir)
	c.Threads = getenvInt("WHISPER_THREADS", c.Threads)
	c.UseGPU = getenvBool("WHISPER_USE_GPU", c.UseGPU)
	c.Language = getenv("WHISPER_LANGUAGE", c.Language)
	c.Format = getenv("WHISPER_FORMAT", c.Format)
	c.TimeoutSec = getenvInt("WHISPER_TIMEOUT", c.TimeoutSec)
	c.MaxUploadMB = getenvInt("WHISPER_MAX_UPLOAD_MB", c.MaxUploadMB)
	c.DownloadTimeoutSec = getenvInt("WHISPER_DOWNLOAD_TIMEOUT", c.DownloadTimeoutSec)
}
