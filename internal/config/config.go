package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const defaultDSN = "goschedule.db"

// DBConfig selects the schedule store.
type DBConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type HTTPConfig struct {
	Port string `mapstructure:"port"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type RefreshConfig struct {
	Workers int `mapstructure:"workers"`
}

// Config holds the runtime configuration of goschedule.
// Values are populated from .goschedule.yaml, GOSCHEDULE_* env vars, and CLI flags.
type Config struct {
	DB      DBConfig      `mapstructure:"db"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Log     LogConfig     `mapstructure:"log"`
	Refresh RefreshConfig `mapstructure:"refresh"`
}

// New returns a viper instance with the goschedule defaults, env binding and config file
// lookup. An empty cfgFile searches for .goschedule.yaml in the working directory.
func New(cfgFile string) *viper.Viper {
	v := viper.New()
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", defaultDSN)
	v.SetDefault("http.port", "8080")
	v.SetDefault("log.level", "INFO")
	v.SetDefault("refresh.workers", 4)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".goschedule")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("GOSCHEDULE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads .env, the config file if present, and the environment into a Config.
func Load(v *viper.Viper) (Config, error) {
	// Load .env if present
	_ = godotenv.Load()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	cfg.DB.Driver = strings.ToLower(cfg.DB.Driver)
	if cfg.DB.Driver == "postgres" && cfg.DB.DSN == defaultDSN {
		if dsn := PostgresDSNFromEnv(); dsn != "" {
			cfg.DB.DSN = dsn
		}
	}
	if cfg.Refresh.Workers < 1 {
		cfg.Refresh.Workers = 1
	}
	return cfg, nil
}

// PostgresDSNFromEnv assembles a connection string from DB_USERNAME, DB_PASSWORD, DB_HOST,
// DB_PORT and DB_NAME. It returns "" when any of them is missing.
func PostgresDSNFromEnv() string {
	dbUsername := os.Getenv("DB_USERNAME")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbName := os.Getenv("DB_NAME")
	if dbUsername == "" || dbPassword == "" || dbHost == "" || dbPort == "" || dbName == "" {
		return ""
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		dbUsername, dbPassword, dbHost, dbPort, dbName)
}
