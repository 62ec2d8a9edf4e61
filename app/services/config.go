package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"VeilKit/pkg/lockbox"
	"VeilKit/pkg/shredder"
)

// ConfigService manages application configuration
type ConfigService struct {
	configPath string
	log        *zerolog.Logger
	config     *Config
}

// Config represents the persisted application preferences
type Config struct {
	DefaultShredMethod string `json:"defaultShredMethod"`
	OutputDir          string `json:"outputDir"`
	KDFTime            uint32 `json:"kdfTime"`
	KDFMemoryKiB       uint32 `json:"kdfMemoryKiB"`
	KDFThreads         uint8  `json:"kdfThreads"`
	LogDir             string `json:"logDir"`
}

// NewConfigService creates a new ConfigService
func NewConfigService(log *zerolog.Logger) (*ConfigService, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".veilkit")
	configPath := filepath.Join(configDir, "config.json")
	logDir := filepath.Join(configDir, "logs")

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	service := &ConfigService{
		configPath: configPath,
		log:        log,
		config: &Config{
			DefaultShredMethod: string(shredder.MethodDoD3),
			LogDir:             logDir,
		},
	}

	if err := service.Load(); err != nil {
		log.Warn().Err(err).Msg("[ConfigService] failed to load config, using defaults")
	}

	return service, nil
}

// Load loads the configuration from disk
func (s *ConfigService) Load() error {
	data, err := os.ReadFile(s.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.DefaultShredMethod == "" {
		config.DefaultShredMethod = string(shredder.MethodDoD3)
	}
	if config.LogDir == "" {
		homeDir, _ := os.UserHomeDir()
		config.LogDir = filepath.Join(homeDir, ".veilkit", "logs")
	}

	s.config = &config
	s.log.Debug().Str("path", s.configPath).Msg("[ConfigService] config loaded")
	return nil
}

// Save saves the configuration to disk
func (s *ConfigService) Save() error {
	data, err := json.MarshalIndent(s.config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(s.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	s.log.Debug().Str("path", s.configPath).Msg("[ConfigService] config saved")
	return nil
}

// GetConfig returns the current configuration
func (s *ConfigService) GetConfig() Config {
	if s.config == nil {
		return Config{}
	}
	return *s.config
}

// SetDefaultShredMethod sets the shred method and saves the config
func (s *ConfigService) SetDefaultShredMethod(method string) error {
	if shredder.PassCount(shredder.Method(method)) == 0 {
		return fmt.Errorf("unknown shred method: %s", method)
	}
	s.config.DefaultShredMethod = method
	return s.Save()
}

// SetOutputDir sets the default output directory for cleaned files
func (s *ConfigService) SetOutputDir(dir string) error {
	s.config.OutputDir = dir
	return s.Save()
}

// KDFParams returns the configured key derivation cost, or the release
// defaults when nothing is overridden.
func (s *ConfigService) KDFParams() lockbox.KDFParams {
	if s.config == nil || s.config.KDFTime == 0 {
		return lockbox.DefaultKDFParams()
	}
	return lockbox.KDFParams{
		Time:      s.config.KDFTime,
		MemoryKiB: s.config.KDFMemoryKiB,
		Threads:   s.config.KDFThreads,
	}
}
