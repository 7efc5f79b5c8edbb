package config

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server     Server
	Database   Database
	OpenRouter OpenRouter
	Tasker     Tasker
	Admin      Admin
	JWT        JWT
	SaltRounds int
}

type Server struct {
	Port string
}

type Database struct {
	Type        string
	Host        string
	Port        string
	Username    string
	Password    string
	Name        string
	SSL         bool
	Synchronize bool
}

type OpenRouter struct {
	BaseURL     string
	APIKey      string
	HTTPReferer string
	XTitle      string
	TimeoutMs   int
}

type Tasker struct {
	// PollIntervalMs is the idle sleep between polls when no attempt has
	// pending work.
	PollIntervalMs int
}

type Admin struct {
	DefaultLogin    string
	DefaultEmail    string
	DefaultPassword string
}

type JWT struct {
	Secret      string
	ExpireHours int
}

func NewConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("Error reading config file")
	}

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("DB_TYPE", "postgres")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSL", false)
	viper.SetDefault("DB_SYNCHRONIZE", false)
	viper.SetDefault("OPENROUTER_API_BASE_URL", "https://openrouter.ai/api/v1")
	viper.SetDefault("OPENROUTER_TIMEOUT_MS", 60000)
	viper.SetDefault("TASKER_POLL_INTERVAL", 5000)
	viper.SetDefault("SALT_ROUNDS", 10)
	viper.SetDefault("JWT_EXPIRE_HOURS", 72)

	var config Config

	config.Server.Port = viper.GetString("SERVER_PORT")

	config.Database.Type = viper.GetString("DB_TYPE")
	config.Database.Host = viper.GetString("DB_HOST")
	config.Database.Port = viper.GetString("DB_PORT")
	config.Database.Username = viper.GetString("DB_USERNAME")
	config.Database.Password = viper.GetString("DB_PASSWORD")
	config.Database.Name = viper.GetString("DB_DATABASE")
	config.Database.SSL = viper.GetBool("DB_SSL")
	config.Database.Synchronize = viper.GetBool("DB_SYNCHRONIZE")

	config.OpenRouter.BaseURL = viper.GetString("OPENROUTER_API_BASE_URL")
	config.OpenRouter.APIKey = viper.GetString("OPENROUTER_API_KEY")
	config.OpenRouter.HTTPReferer = viper.GetString("OPENROUTER_HTTP_REFERER")
	config.OpenRouter.XTitle = viper.GetString("OPENROUTER_X_TITLE")
	config.OpenRouter.TimeoutMs = viper.GetInt("OPENROUTER_TIMEOUT_MS")

	config.Tasker.PollIntervalMs = viper.GetInt("TASKER_POLL_INTERVAL")

	config.Admin.DefaultLogin = viper.GetString("ADMIN_DEFAULT_LOGIN")
	config.Admin.DefaultEmail = viper.GetString("ADMIN_DEFAULT_EMAIL")
	config.Admin.DefaultPassword = viper.GetString("ADMIN_DEFAULT_PASSWORD")

	config.JWT.Secret = viper.GetString("JWT_SECRET")
	config.JWT.ExpireHours = viper.GetInt("JWT_EXPIRE_HOURS")

	config.SaltRounds = viper.GetInt("SALT_ROUNDS")

	if config.Database.Type != "postgres" {
		return nil, fmt.Errorf("unsupported DB_TYPE %q, only postgres is supported", config.Database.Type)
	}
	if config.OpenRouter.APIKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY is required")
	}

	log.Info().Str("db_host", config.Database.Host).Str("server_port", config.Server.Port).Msg("Config loaded")
	return &config, nil
}
