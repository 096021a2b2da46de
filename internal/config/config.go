package config

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/example/engbot/internal/spaced_repetition"
)

// ErrInvalidConfig is returned when the merged configuration fails validation.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Константы для настроек уведомлений по умолчанию
const (
	DefaultNotificationStartHour = 4  // Время начала уведомлений
	DefaultNotificationEndHour   = 18 // Время окончания уведомлений
)

// Config holds every setting of the bot process.
type Config struct {
	TelegramBotToken string `koanf:"telegram_bot_token" validate:"required_if=EnableBot true"`
	EnableBot        bool   `koanf:"enable_bot"`
	DBType           string `koanf:"db_type" validate:"oneof=sqlite postgres"`
	DBDSN            string `koanf:"db_dsn" validate:"required"`
	LogMode          string `koanf:"log_mode" validate:"oneof=dev prod"`

	CacheCapacity int `koanf:"cache_capacity" validate:"gte=1"`
	QueueCapacity int `koanf:"queue_capacity" validate:"gte=1,lte=500"`
	BatchWorkers  int `koanf:"batch_workers" validate:"gte=1,lte=64"`

	EnableScheduler       bool `koanf:"enable_scheduler"`
	NotificationStartHour int  `koanf:"notification_start_hour" validate:"gte=0,lte=23"`
	NotificationEndHour   int  `koanf:"notification_end_hour" validate:"gte=0,lte=23,gtefield=NotificationStartHour"`

	AdminUserIDs string  `koanf:"admin_user_ids"`
	Admins       []int64 `koanf:"-"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		EnableBot:             true,
		DBType:                "sqlite",
		DBDSN:                 "data/engbot.db",
		LogMode:               "dev",
		CacheCapacity:         spaced_repetition.DefaultCacheCapacity,
		QueueCapacity:         spaced_repetition.DefaultQueueCapacity,
		BatchWorkers:          spaced_repetition.DefaultBatchWorkers,
		EnableScheduler:       true,
		NotificationStartHour: DefaultNotificationStartHour,
		NotificationEndHour:   DefaultNotificationEndHour,
	}
}

// Options selects the sources Load reads from.
type Options struct {
	ConfigFile string         // optional YAML file
	EnvFile    string         // optional dotenv file, ignored when missing
	Flags      *pflag.FlagSet // optional parsed command-line flags
}

// RegisterFlags defines the command-line flags understood by Load.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Defaults()
	flags.String("config", "", "Path to a YAML configuration file")
	flags.String("env-file", ".env", "Path to a dotenv file")
	flags.String("db-type", d.DBType, "Database type: sqlite or postgres")
	flags.String("db-dsn", d.DBDSN, "Database file path or connection string")
	flags.String("log-mode", d.LogMode, "Log mode: dev or prod")
	flags.Int("queue-capacity", d.QueueCapacity, "Cards offered per review session")
	flags.Bool("enable-scheduler", d.EnableScheduler, "Send hourly review reminders")
	flags.Bool("enable-bot", d.EnableBot, "Connect to Telegram")
}

// Load merges defaults, the YAML file, the dotenv file, the environment and flags,
// in that order, and validates the result.
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")

	if opts.ConfigFile != "" {
		if err := k.Load(file.Provider(opts.ConfigFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", opts.ConfigFile, err)
		}
	}

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", opts.EnvFile, err)
		}
	}

	known := knownKeys()
	if err := k.Load(env.Provider("", ".", func(s string) string {
		key := strings.ToLower(s)
		if !known[key] {
			return ""
		}
		return key
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if !known[key] {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	cfg := Defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	c.Admins = c.Admins[:0]
	for _, idStr := range strings.Split(c.AdminUserIDs, ",") {
		idStr = strings.TrimSpace(idStr)
		if idStr == "" {
			continue
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: invalid admin user ID %q", ErrInvalidConfig, idStr)
		}
		c.Admins = append(c.Admins, id)
	}
	return nil
}

// IsAdmin reports whether userID is listed in admin_user_ids.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admins {
		if id == userID {
			return true
		}
	}
	return false
}

// knownKeys lists the koanf keys of Config so unrelated environment variables are ignored.
func knownKeys() map[string]bool {
	keys := make(map[string]bool)
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		if tag := t.Field(i).Tag.Get("koanf"); tag != "" && tag != "-" {
			keys[tag] = true
		}
	}
	return keys
}
