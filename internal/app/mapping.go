package app

import (
	"time"

	"gardenbot/internal/broadcast"
	"gardenbot/internal/config"
	"gardenbot/internal/feed"
	"gardenbot/internal/messenger"
	"gardenbot/internal/stats"
	"gardenbot/pkg/logx"
)

// The config file speaks duration strings; services speak time.Duration.
// Validate() has already rejected unparsable values, so the mappers only
// need to fill defaults.

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Alert: logx.AlertConfig{
			Enabled:     cfg.Logging.Alert.Enabled,
			RecipientID: cfg.Logging.Alert.RecipientID,
			MinLevel:    cfg.Logging.Alert.MinLevel,
			RatePerSec:  cfg.Logging.Alert.RatePerSec,
		},
	}
}

func mapMessengerConfig(cfg *config.Config) messenger.Config {
	return messenger.Config{
		AccessToken: cfg.Messenger.AccessToken,
		APIBase:     cfg.Messenger.APIBase,
		RatePerSec:  cfg.Messenger.RatePerSec,
		SendTimeout: config.DurationOrDefault(cfg.Messenger.SendTimeout, 10*time.Second),
	}
}

func mapFeedConfig(cfg *config.Config) feed.Config {
	return feed.Config{
		URL:          cfg.Feed.URL,
		InitialDelay: config.DurationOrDefault(cfg.Feed.InitialDelay, 0),
		MaxDelay:     config.DurationOrDefault(cfg.Feed.MaxDelay, 0),
		JitterMax:    config.DurationOrDefault(cfg.Feed.JitterMax, 0),
		MaxRetries:   cfg.Feed.MaxRetries,
		Heartbeat:    config.DurationOrDefault(cfg.Feed.Heartbeat, 0),
		PongTimeout:  config.DurationOrDefault(cfg.Feed.PongTimeout, 0),
	}
}

func mapBroadcastConfig(cfg *config.Config) broadcast.Config {
	return broadcast.Config{
		Timeout:       config.DurationOrDefault(cfg.Broadcast.Timeout, 0),
		MaxConcurrent: cfg.Broadcast.MaxConcurrent,
	}
}

func mapStatsConfig(cfg *config.Config) stats.Config {
	return stats.Config{
		Enabled: cfg.Stats.Enabled,
		Spec:    cfg.Stats.Spec,
	}
}
