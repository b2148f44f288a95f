package app

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/housecup/internal/bot"
	"github.com/shrimpsizemoose/housecup/internal/notify"
)

type HeaderConfig struct {
	Name  string `toml:"name"`
	Value string `toml:"value"`
}

// GSheetConfig describes one spreadsheet the standings are exported to.
type GSheetConfig struct {
	SheetID         string `toml:"sheet_id"`
	SheetName       string `toml:"sheet_name"`
	CredentialsPath string `toml:"credentials_path"`
	Schedule        string `toml:"schedule"`
	StandingsRange  string `toml:"standings_range"`
	TimestampRange  string `toml:"timestamp_range"`
}

type Config struct {
	Server struct {
		Port       string `toml:"port"`
		EnableAuth bool   `toml:"enable_auth"`
	} `toml:"server"`

	Auth struct {
		RedisURL        string `toml:"redis_url"`
		TokenHeader     string `toml:"token_header"`
		SessionTTLHours int    `toml:"session_ttl_hours"`
	} `toml:"auth"`

	API struct {
		StudentIDHeader    string         `toml:"student_id_header"`
		RequiredHeaders    []HeaderConfig `toml:"required_headers"`
		NotificationsLimit int            `toml:"notifications_limit"`
	} `toml:"api"`

	Database struct {
		DSN           string `toml:"dsn"`
		MigrationsDir string `toml:"migrations_dir"`
	} `toml:"database"`

	Competition struct {
		StartsAt            string `toml:"starts_at"`
		AllowNegativePoints bool   `toml:"allow_negative_points"`
		AssignmentSeed      uint64 `toml:"assignment_seed"`
	} `toml:"competition"`

	Leaderboard struct {
		CacheTTLSeconds  int    `toml:"cache_ttl_seconds"`
		CacheKey         string `toml:"cache_key"`
		SubscriberBuffer int    `toml:"subscriber_buffer"`
	} `toml:"leaderboard"`

	Notify struct {
		Push notify.PushConfig `toml:"push"`
	} `toml:"notify"`

	Bot bot.Config `toml:"bot"`

	GSheet        []GSheetConfig `toml:"gsheet"`
	EmojiVariants []string       `toml:"emoji_variants"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("error reading config file %s\n> Error: %w", path, err)
	}
	return config, nil
}

// ParseConfig decodes TOML and fills in defaults.
func ParseConfig(data []byte) (*Config, error) {
	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	if config.Server.Port == "" {
		return nil, fmt.Errorf("Server port is not specified in config, use a value like :9999")
	}
	if _, err := config.StartsAt(); err != nil {
		return nil, err
	}

	config.applyDefaults()
	logger.Debug.Printf("Loaded competition config: %+v", config.Competition)

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Auth.TokenHeader == "" {
		c.Auth.TokenHeader = "Authorization"
	}
	if c.Auth.SessionTTLHours <= 0 {
		c.Auth.SessionTTLHours = 24 * 7
	}
	if c.API.StudentIDHeader == "" {
		c.API.StudentIDHeader = "X-Student-Matric"
	}
	if c.API.NotificationsLimit <= 0 {
		c.API.NotificationsLimit = 20
	}
	if c.Database.MigrationsDir == "" {
		c.Database.MigrationsDir = "./migrations"
	}
	if c.Leaderboard.CacheTTLSeconds <= 0 {
		c.Leaderboard.CacheTTLSeconds = 30
	}
	if c.Leaderboard.CacheKey == "" {
		c.Leaderboard.CacheKey = "leaderboard:standings"
	}
	if c.Leaderboard.SubscriberBuffer <= 0 {
		c.Leaderboard.SubscriberBuffer = notify.DefaultBuffer
	}
	if c.Notify.Push.Title == "" {
		c.Notify.Push.Title = notify.DefaultPushTitle
	}
	if c.Notify.Push.TTLSeconds <= 0 {
		c.Notify.Push.TTLSeconds = 60 * 60
	}
	if len(c.EmojiVariants) == 0 {
		c.EmojiVariants = []string{"🏆"}
	}
	for i := range c.GSheet {
		if c.GSheet[i].StandingsRange == "" {
			c.GSheet[i].StandingsRange = "A2:G"
		}
		if c.GSheet[i].TimestampRange == "" {
			c.GSheet[i].TimestampRange = "I1"
		}
	}
}

// StartsAt parses competition.starts_at as RFC 3339 or a plain date. The
// zero time means the first recorded score marks the start.
func (c *Config) StartsAt() (time.Time, error) {
	raw := c.Competition.StartsAt
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("competition.starts_at %q is neither RFC 3339 nor YYYY-MM-DD", raw)
	}
	return t, nil
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Auth.SessionTTLHours) * time.Hour
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Leaderboard.CacheTTLSeconds) * time.Second
}
