package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port int    `yaml:"port"`
		Host string `yaml:"host"`
	} `yaml:"server"`

	Engine struct {
		InstallDir   string `yaml:"install_dir"`
		BundledDir   string `yaml:"bundled_dir"`
		ModelsDir    string `yaml:"models_dir"`
		DefaultModel string `yaml:"default_model"`
	} `yaml:"engine"`

	Converter struct {
		FFmpegPath string `yaml:"ffmpeg_path"`
	} `yaml:"converter"`

	Storage struct {
		TempDir   string `yaml:"temp_dir"`
		OutputDir string `yaml:"output_dir"`
		Database  string `yaml:"database"`
	} `yaml:"storage"`

	Cleanup struct {
		IntervalMinutes int `yaml:"interval_minutes"`
		MaxAgeHours     int `yaml:"max_age_hours"`
	} `yaml:"cleanup"`

	GoogleDrive struct {
		CredentialsFile string `yaml:"credentials_file"`
		TokenFile       string `yaml:"token_file"`
		FolderName      string `yaml:"folder_name"`
	} `yaml:"google_drive"`

	Limits struct {
		MaxFileSizeMB int `yaml:"max_file_size_mb"`
	} `yaml:"limits"`
}

// Load reads the YAML configuration file and applies defaults.
func Load(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()
	return &config, nil
}

// Default returns a configuration usable without a config file.
func Default() *Config {
	config := &Config{}
	config.applyDefaults()
	return config
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Engine.InstallDir == "" {
		c.Engine.InstallDir = "models"
	}
	if c.Engine.ModelsDir == "" {
		c.Engine.ModelsDir = c.Engine.InstallDir
	}
	if c.Engine.DefaultModel == "" {
		c.Engine.DefaultModel = "small"
	}
	if c.Converter.FFmpegPath == "" {
		c.Converter.FFmpegPath = "ffmpeg"
	}
	if c.Storage.TempDir == "" {
		c.Storage.TempDir = filepath.Join(os.TempDir(), "caption-pipeline")
	}
	if c.Storage.OutputDir == "" {
		c.Storage.OutputDir = "outputs"
	}
	if c.Storage.Database == "" {
		c.Storage.Database = "captions.db"
	}
	if c.Cleanup.IntervalMinutes == 0 {
		c.Cleanup.IntervalMinutes = 60
	}
	if c.Cleanup.MaxAgeHours == 0 {
		c.Cleanup.MaxAgeHours = 24
	}
	if c.Limits.MaxFileSizeMB == 0 {
		c.Limits.MaxFileSizeMB = 500
	}
}

// engineBinaryNames are the executable names the engine ships under.
var engineBinaryNames = []string{"main", "main.exe", "whisper-cli", "whisper-cli.exe"}

// LocateEngine resolves the recognition engine executable once, at bootstrap.
// Search order: the configured install directory, its whisper.cpp
// subdirectory, then the bundled-resource directory. The first existing
// match wins.
func (c *Config) LocateEngine() (string, error) {
	dirs := []string{
		c.Engine.InstallDir,
		filepath.Join(c.Engine.InstallDir, "whisper.cpp"),
	}
	if c.Engine.BundledDir != "" {
		dirs = append(dirs, c.Engine.BundledDir)
	}

	for _, dir := range dirs {
		for _, name := range engineBinaryNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}
	}

	return "", fmt.Errorf(
		"recognition engine executable not found (searched %s, %s, %s)",
		c.Engine.InstallDir,
		filepath.Join(c.Engine.InstallDir, "whisper.cpp"),
		c.Engine.BundledDir,
	)
}

// ModelPath returns the expected model artifact location for a model name.
func (c *Config) ModelPath(model string) string {
	if model == "" {
		model = c.Engine.DefaultModel
	}
	return filepath.Join(c.Engine.ModelsDir, fmt.Sprintf("ggml-%s.bin", model))
}
