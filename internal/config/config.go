package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"bgtask/internal/scheduler"
)

// BGConfig holds the application configuration
type BGConfig struct {
	Database struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"database"`

	Queue struct {
		Host     string `mapstructure:"host"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
		Enabled  bool   `mapstructure:"enabled"`
	} `mapstructure:"queue"`

	Scheduler struct {
		MaxRunTimeSec int `mapstructure:"max_run_time"`
		MaxAttempts   int `mapstructure:"max_attempts"`
	} `mapstructure:"scheduler"`

	Worker struct {
		SleepDuration int    `mapstructure:"sleep_duration"`
		Queue         string `mapstructure:"queue"`
	} `mapstructure:"worker"`

	Janitor struct {
		Cron          string `mapstructure:"cron"`
		RetentionDays int    `mapstructure:"retention_days"`
	} `mapstructure:"janitor"`

	LogLevel string `mapstructure:"log_level"`
}

// LoadConfig reads the configuration from a file or environment variables
func LoadConfig(configPaths ...string) (*BGConfig, error) {
	// can specify config path from environment
	if path, exists := os.LookupEnv("BGT_CONFIG_PATH"); exists {
		configPaths = append(configPaths, path)
	}
	for _, path := range configPaths {
		fi, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		} else if err != nil {
			return nil, err
		}
		mode := fi.Mode()
		switch {
		case mode.IsRegular():
			v := newViper()
			v.SetConfigFile(path)
			config, err := readConfig(v, path)
			if err != nil {
				continue
			}
			return config, nil

		case mode.IsDir():
			v := newViper()
			v.AddConfigPath(path)
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			config, err := readConfig(v, path)
			if err != nil {
				continue
			}
			return config, nil
		}
	}

	v := newViper()
	// finally read from current working directory
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	cwd, _ := os.Getwd()

	config, err := readConfig(v, cwd)
	if err != nil {
		return nil, err
	}
	return config, nil
}

// setDefaults sets default values for configuration
func newViper() *viper.Viper {
	v := viper.New()

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "bgtask")
	v.SetDefault("database.sslmode", "disable")

	// Notification queue defaults
	v.SetDefault("queue.host", "localhost:6379")
	v.SetDefault("queue.password", "")
	v.SetDefault("queue.db", 0)
	v.SetDefault("queue.enabled", false)

	// Scheduler defaults
	v.SetDefault("scheduler.max_run_time", 3600) // 1 hour lease
	v.SetDefault("scheduler.max_attempts", 25)

	// Worker defaults
	v.SetDefault("worker.sleep_duration", 5)
	v.SetDefault("worker.queue", "")

	// Janitor defaults
	v.SetDefault("janitor.cron", "0 3 * * *")
	v.SetDefault("janitor.retention_days", 0) // 0 keeps completed tasks forever

	// Log level default
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("BGT")                              // Prefix for environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // Replace dots with underscores in env vars
	v.AutomaticEnv()                                   // Read environment variables

	return v
}

func readConfig(v *viper.Viper, path string) (*BGConfig, error) {
	var config BGConfig

	if err := v.ReadInConfig(); err != nil {
		log.Warn().
			Str("path", path).
			Msg("Could not read config file")
		return nil, err
	}
	if err := v.Unmarshal(&config); err != nil {
		log.Warn().
			Str("path", path).
			Msg("Could not unmarshall config")
		return nil, err
	}

	return &config, nil
}

// GetDatabaseURL returns a formatted database connection string
func (c *BGConfig) GetDatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// SchedulerConfig converts the raw settings into the engines' explicit
// configuration struct.
func (c *BGConfig) SchedulerConfig() scheduler.Config {
	conf := scheduler.DefaultConfig()
	if c.Scheduler.MaxRunTimeSec > 0 {
		conf.MaxRunTime = time.Duration(c.Scheduler.MaxRunTimeSec) * time.Second
	}
	if c.Scheduler.MaxAttempts > 0 {
		conf.MaxAttempts = c.Scheduler.MaxAttempts
	}
	return conf
}

// Level parses the configured log level, defaulting to info.
func (c *BGConfig) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
