package bot

import (
	"time"
)

// BotConfig represents the configuration for the bot
type BotConfig struct {
	// Telegram user IDs allowed to import files
	AdminUserIDs []int64
	// Timeout for downloading an uploaded file
	DownloadTimeout time.Duration
	// How many row errors of an import are echoed back to the user
	MaxReportedErrors int
	// Long-polling timeout, seconds
	UpdateTimeout int
	// Upper bound of cards listed by /queue
	QueueCapacity int
}

// DefaultConfig returns the default bot configuration
func DefaultConfig() *BotConfig {
	return &BotConfig{
		DownloadTimeout:   30 * time.Second,
		MaxReportedErrors: 10,
		UpdateTimeout:     60,
		QueueCapacity:     20,
	}
}
