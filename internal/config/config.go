package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"ssis-checker/internal/compressor"
	"ssis-checker/internal/extractor"
)

// Config represents the main configuration structure
type Config struct {
	Compression CompressionConfig `mapstructure:"compression"`
	Extractor   ExtractorConfig   `mapstructure:"extractor"`
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// CompressionConfig bounds the image compressor
type CompressionConfig struct {
	TargetBytes         int64 `mapstructure:"target_bytes"`
	MaxAttempts         int   `mapstructure:"max_attempts"`
	MaxDimension        int   `mapstructure:"max_dimension"`
	TransportLimitBytes int64 `mapstructure:"transport_limit_bytes"`
}

// ExtractorConfig selects the label extraction service
type ExtractorConfig struct {
	Type      string        `mapstructure:"type"`
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Sample    string        `mapstructure:"sample"`
	CacheSize int           `mapstructure:"cache_size"`
}

// ServerConfig contains HTTP API settings
type ServerConfig struct {
	Port             int      `mapstructure:"port"`
	APIKey           string   `mapstructure:"api_key"`
	RateLimitPerHour int      `mapstructure:"rate_limit_per_hour"` // 0 disables limiting
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	MaxUploadBytes   int64    `mapstructure:"max_upload_bytes"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // json or text
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Compression: CompressionConfig{
			TargetBytes:         compressor.DefaultTargetBytes,
			MaxAttempts:         compressor.DefaultMaxAttempts,
			MaxDimension:        compressor.DefaultMaxDimension,
			TransportLimitBytes: compressor.DefaultTransportLimit,
		},
		Extractor: ExtractorConfig{
			Type:      string(extractor.ProviderOpenAI),
			Model:     "gpt-4o-mini",
			MaxTokens: 1000,
			Timeout:   60 * time.Second,
			CacheSize: extractor.DefaultCacheSize,
		},
		Server: ServerConfig{
			Port:             3001,
			RateLimitPerHour: 10,
			AllowedOrigins: []string{
				"http://localhost:5173",
				"http://localhost:5174",
			},
			MaxUploadBytes: 10 * 1024 * 1024,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			FilePath:   "",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// envAliases lets plain deployment variables override nested keys.
var envAliases = map[string][]string{
	"server.api_key":             {"SSIS_SERVER_API_KEY", "API_SECRET_KEY"},
	"server.port":                {"SSIS_SERVER_PORT", "PORT"},
	"server.rate_limit_per_hour": {"SSIS_SERVER_RATE_LIMIT_PER_HOUR", "RATE_LIMIT_PER_HOUR"},
	"extractor.api_key":          {"SSIS_EXTRACTOR_API_KEY", "OPENAI_API_KEY"},
	"extractor.base_url":         {"SSIS_EXTRACTOR_BASE_URL", "OPENAI_BASE_URL"},
}

// LoadConfig loads configuration from an optional .env file, a YAML file
// and SSIS_* environment variables, in increasing priority.
func LoadConfig(configPath, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error loading env file: %w", err)
		}
	}

	config := DefaultConfig()
	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config file in current directory and home directory
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.ssis-checker")
		v.AddConfigPath("/etc/ssis-checker")
	}

	setDefaults(v, config)

	// Enable environment variable support
	v.SetEnvPrefix("SSIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("error binding env for %s: %w", key, err)
		}
	}

	// Try to read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("compression.target_bytes", c.Compression.TargetBytes)
	v.SetDefault("compression.max_attempts", c.Compression.MaxAttempts)
	v.SetDefault("compression.max_dimension", c.Compression.MaxDimension)
	v.SetDefault("compression.transport_limit_bytes", c.Compression.TransportLimitBytes)

	v.SetDefault("extractor.type", c.Extractor.Type)
	v.SetDefault("extractor.base_url", c.Extractor.BaseURL)
	v.SetDefault("extractor.api_key", c.Extractor.APIKey)
	v.SetDefault("extractor.model", c.Extractor.Model)
	v.SetDefault("extractor.max_tokens", c.Extractor.MaxTokens)
	v.SetDefault("extractor.timeout", c.Extractor.Timeout)
	v.SetDefault("extractor.sample", c.Extractor.Sample)
	v.SetDefault("extractor.cache_size", c.Extractor.CacheSize)

	v.SetDefault("server.port", c.Server.Port)
	v.SetDefault("server.api_key", c.Server.APIKey)
	v.SetDefault("server.rate_limit_per_hour", c.Server.RateLimitPerHour)
	v.SetDefault("server.allowed_origins", c.Server.AllowedOrigins)
	v.SetDefault("server.max_upload_bytes", c.Server.MaxUploadBytes)

	v.SetDefault("logging.level", c.Logging.Level)
	v.SetDefault("logging.format", c.Logging.Format)
	v.SetDefault("logging.file_path", c.Logging.FilePath)
	v.SetDefault("logging.max_size", c.Logging.MaxSize)
	v.SetDefault("logging.max_backups", c.Logging.MaxBackups)
	v.SetDefault("logging.max_age", c.Logging.MaxAge)
	v.SetDefault("logging.compress", c.Logging.Compress)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	cc := c.Compression
	if cc.TargetBytes <= 0 {
		return fmt.Errorf("compression.target_bytes must be positive, got %d", cc.TargetBytes)
	}
	if cc.MaxAttempts <= 0 {
		return fmt.Errorf("compression.max_attempts must be positive, got %d", cc.MaxAttempts)
	}
	if cc.MaxDimension <= 0 {
		return fmt.Errorf("compression.max_dimension must be positive, got %d", cc.MaxDimension)
	}
	if cc.TransportLimitBytes <= 0 {
		return fmt.Errorf("compression.transport_limit_bytes must be positive, got %d", cc.TransportLimitBytes)
	}
	if cc.TargetBytes > cc.TransportLimitBytes {
		return fmt.Errorf("compression.target_bytes (%d) exceeds transport_limit_bytes (%d)",
			cc.TargetBytes, cc.TransportLimitBytes)
	}

	if _, err := extractor.ParseProviderType(c.Extractor.Type); err != nil {
		return fmt.Errorf("invalid extractor.type: %w", err)
	}
	if c.Extractor.MaxTokens <= 0 {
		c.Extractor.MaxTokens = 1000
	}
	if c.Extractor.Timeout <= 0 {
		c.Extractor.Timeout = 60 * time.Second
	}
	if c.Extractor.CacheSize <= 0 {
		c.Extractor.CacheSize = extractor.DefaultCacheSize
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	if c.Server.RateLimitPerHour < 0 {
		return fmt.Errorf("server.rate_limit_per_hour must not be negative, got %d", c.Server.RateLimitPerHour)
	}
	if c.Server.MaxUploadBytes <= 0 {
		c.Server.MaxUploadBytes = 10 * 1024 * 1024
	}

	// Validate logging settings
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s (valid: json, text)", c.Logging.Format)
	}

	return nil
}

// Params converts the section into compressor parameters.
func (c CompressionConfig) Params() compressor.Params {
	return compressor.Params{
		TargetBytes:  c.TargetBytes,
		MaxAttempts:  c.MaxAttempts,
		MaxDimension: c.MaxDimension,
	}
}

// ExtractorConfig converts the section into extractor settings.
func (c ExtractorConfig) ExtractorConfig() extractor.Config {
	return extractor.Config{
		Type:      c.Type,
		BaseURL:   c.BaseURL,
		APIKey:    c.APIKey,
		Model:     c.Model,
		MaxTokens: c.MaxTokens,
		Timeout:   c.Timeout,
		Sample:    c.Sample,
		CacheSize: c.CacheSize,
	}
}
