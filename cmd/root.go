package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/interview-trainer/internal/ai"
	"github.com/spigell/interview-trainer/internal/ai/gemini"
	"github.com/spigell/interview-trainer/internal/ai/openai"
	"github.com/spigell/interview-trainer/internal/interview"
	"github.com/spigell/interview-trainer/internal/logger"
	"github.com/spigell/interview-trainer/internal/secrets"
	"go.uber.org/zap"
)

const (
	app = "interview-trainer"
)

type Config struct {
	Interview *InterviewConfig `mapstructure:"interview"`
	AI        *AIConfig        `mapstructure:"ai"`
	Speech    *SpeechConfig    `mapstructure:"speech"`
	Server    *ServerConfig    `mapstructure:"server"`
	Resume    *ResumeConfig    `mapstructure:"resume"`
	Report    *ReportConfig    `mapstructure:"report"`
}

type InterviewConfig struct {
	MaxQuestions        int     `mapstructure:"max-questions"`
	ProjectPercentage   float64 `mapstructure:"project-percentage"`
	TechnicalPercentage float64 `mapstructure:"technical-percentage"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
	OpenAI   *OpenAIConfig `mapstructure:"openai"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
}

type OpenAIConfig struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	BaseURL    string `mapstructure:"base-url"`
}

type SpeechConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	URL       string `mapstructure:"url"`
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"token-file"`
}

type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

type ResumeConfig struct {
	File string `mapstructure:"file"`
}

type ReportConfig struct {
	File string `mapstructure:"file"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "interview-trainer is a voice-enabled AI mock interviewer with per-session feedback reports",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Local development convenience; a missing .env file is fine.
	_ = godotenv.Load()

	envBindings := map[string]string{
		"ai.gemini.api-key": "GEMINI_API_KEY",
		"ai.openai.api-key": "OPENAI_API_KEY",
		"speech.token":      "SPEECH_TOKEN",
	}
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is interview-trainer.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// The config file is optional: API keys can come from the
	// environment and every knob has a default.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config == nil {
		config = &Config{}
	}

	return config, nil
}

// interviewConfig maps the config file knobs onto the engine defaults.
func (c *Config) interviewConfig() interview.Config {
	if c.Interview == nil {
		return interview.Config{}
	}

	return interview.Config{
		MaxQuestions:        c.Interview.MaxQuestions,
		ProjectPercentage:   c.Interview.ProjectPercentage,
		TechnicalPercentage: c.Interview.TechnicalPercentage,
	}
}

// newCompleter builds the configured chat model client. Gemini is the
// default provider.
func newCompleter(ctx context.Context, cfg *AIConfig, log *zap.Logger) (ai.Completer, error) {
	if cfg == nil {
		cfg = &AIConfig{}
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider == "" {
		provider = "gemini"
	}

	switch provider {
	case "gemini":
		gcfg := cfg.Gemini
		if gcfg == nil {
			gcfg = &GeminiConfig{}
		}

		apiKey, err := secrets.Load("gemini api key", gcfg.APIKeyFile, gcfg.APIKey)
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
		}

		client, err := gemini.New(ctx, apiKey, gcfg.Model)
		if err != nil {
			return nil, err
		}

		logger.WithProviderModel(log, provider, client.Model()).Info("ai provider configured")

		return client, nil
	case "openai":
		ocfg := cfg.OpenAI
		if ocfg == nil {
			ocfg = &OpenAIConfig{}
		}

		apiKey, err := secrets.Load("openai api key", ocfg.APIKeyFile, ocfg.APIKey)
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.openai.api-key-file or OPENAI_API_KEY)", err)
		}

		client, err := openai.New(apiKey, ocfg.Model, ocfg.BaseURL)
		if err != nil {
			return nil, err
		}

		logger.WithProviderModel(log, provider, client.Model()).Info("ai provider configured")

		return client, nil
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
}
