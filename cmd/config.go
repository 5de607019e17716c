package cmd

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"github.com/spigell/resume-recommender/internal/ai/gemini"
	"github.com/spigell/resume-recommender/internal/extract"
	"github.com/spigell/resume-recommender/internal/notify"
	"github.com/spigell/resume-recommender/internal/resume"
	"github.com/spigell/resume-recommender/internal/store"
)

const (
	ScoringHeuristic = "heuristic"
	ScoringModel     = "model"
	TransportREST    = "rest"
	TransportSDK     = "sdk"
	ProviderGemini   = "gemini"
)

type Config struct {
	MaxFileSize int64             `mapstructure:"max-file-size" json:"max-file-size" validate:"gt=0"`
	Scoring     ScoringConfig     `mapstructure:"scoring" json:"scoring"`
	Extract     ExtractConfig     `mapstructure:"extract" json:"extract"`
	AI          AIConfig          `mapstructure:"ai" json:"ai"`
	Store       StoreConfig       `mapstructure:"store" json:"store"`
	ObjectStore ObjectStoreConfig `mapstructure:"object-store" json:"object-store"`
	Notify      NotifyConfig      `mapstructure:"notify" json:"notify"`
	Server      ServerConfig      `mapstructure:"server" json:"server"`
}

type ScoringConfig struct {
	Strategy  string `mapstructure:"strategy" json:"strategy" validate:"oneof=heuristic model"`
	ModelFile string `mapstructure:"model-file" json:"model-file" validate:"required_if=Strategy model"`
}

type ExtractConfig struct {
	Mode string `mapstructure:"mode" json:"mode" validate:"oneof=remote local"`
}

type AIConfig struct {
	Enabled   bool         `mapstructure:"enabled" json:"enabled"`
	Provider  string       `mapstructure:"provider" json:"provider" validate:"oneof=gemini"`
	Transport string       `mapstructure:"transport" json:"transport" validate:"oneof=rest sdk"`
	Gemini    GeminiConfig `mapstructure:"gemini" json:"gemini"`
}

type GeminiConfig struct {
	APIKey       string        `mapstructure:"api-key" json:"-"`
	APIKeyFile   string        `mapstructure:"api-key-file" json:"api-key-file,omitempty"`
	Model        string        `mapstructure:"model" json:"model"`
	Endpoint     string        `mapstructure:"endpoint" json:"endpoint"`
	Timeout      time.Duration `mapstructure:"timeout" json:"timeout" validate:"gte=0"`
	MaxLogLength int           `mapstructure:"max-log-length" json:"max-log-length" validate:"gte=0"`
}

// StoreConfig selects the results database. An empty driver disables it.
type StoreConfig struct {
	Driver string `mapstructure:"driver" json:"driver" validate:"omitempty,oneof=sqlite postgres"`
	DSN    string `mapstructure:"dsn" json:"-" validate:"required_with=Driver"`
}

type ObjectStoreConfig struct {
	Enabled   bool   `mapstructure:"enabled" json:"enabled"`
	Bucket    string `mapstructure:"bucket" json:"bucket" validate:"required_if=Enabled true"`
	Endpoint  string `mapstructure:"endpoint" json:"endpoint,omitempty"`
	Region    string `mapstructure:"region" json:"region,omitempty"`
	AccessKey string `mapstructure:"access-key" json:"-"`
	SecretKey string `mapstructure:"secret-key" json:"-"`
	Prefix    string `mapstructure:"prefix" json:"prefix,omitempty"`
}

// NotifyConfig enables AMQP state-change events when AMQPURL is set.
type NotifyConfig struct {
	AMQPURL  string `mapstructure:"amqp-url" json:"-" validate:"omitempty,url"`
	Exchange string `mapstructure:"exchange" json:"exchange"`
}

type ServerConfig struct {
	Listen string `mapstructure:"listen" json:"listen" validate:"required"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("max-file-size", resume.DefaultMaxFileSize)
	v.SetDefault("scoring.strategy", ScoringHeuristic)
	v.SetDefault("scoring.model-file", "")
	v.SetDefault("extract.mode", extract.ModeRemote)
	v.SetDefault("ai.enabled", true)
	v.SetDefault("ai.provider", ProviderGemini)
	v.SetDefault("ai.transport", TransportREST)
	v.SetDefault("ai.gemini.api-key", "")
	v.SetDefault("ai.gemini.api-key-file", "")
	v.SetDefault("ai.gemini.model", gemini.DefaultModel)
	v.SetDefault("ai.gemini.endpoint", gemini.DefaultEndpoint)
	v.SetDefault("ai.gemini.timeout", time.Duration(0))
	v.SetDefault("ai.gemini.max-log-length", 200)
	v.SetDefault("store.driver", store.DriverSQLite)
	v.SetDefault("store.dsn", "data/"+app+".db")
	v.SetDefault("object-store.enabled", false)
	v.SetDefault("object-store.bucket", "")
	v.SetDefault("object-store.endpoint", "")
	v.SetDefault("object-store.region", "")
	v.SetDefault("object-store.access-key", "")
	v.SetDefault("object-store.secret-key", "")
	v.SetDefault("object-store.prefix", "resumes")
	v.SetDefault("notify.amqp-url", "")
	v.SetDefault("notify.exchange", notify.DefaultExchange)
	v.SetDefault("server.listen", ":8080")
}

func loadConfig(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := validator.New().Struct(&config); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &config, nil
}
