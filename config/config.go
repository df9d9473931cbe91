// Package config loads videobot's runtime configuration: the bot id, the
// messaging-bus endpoint and channel names, and the recorder's output
// directory, via a package-level viper.Viper seeded with defaults,
// environment bindings, and an optional config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

var v *viper.Viper

func init() {
	v = viper.New()

	v.SetDefault("bot.id", "")
	v.SetDefault("messaging.endpoint", "ws://localhost:8900/bus")
	v.SetDefault("messaging.channels.metadata", "stream/metadata")
	v.SetDefault("messaging.channels.frames", "stream/frames")
	v.SetDefault("messaging.channels.analysis", "bot/analysis")
	v.SetDefault("messaging.channels.debug", "bot/debug")
	v.SetDefault("messaging.channels.control", "bot/control")
	v.SetDefault("recorder.output_dir", filepath.Join(xdg.Home, ".videobot", "recordings"))

	v.AutomaticEnv()
	v.BindEnv("bot.id", "VIDEOBOT_ID")
	v.BindEnv("messaging.endpoint", "VIDEOBOT_MESSAGING_ENDPOINT")
	v.BindEnv("messaging.channels.metadata", "VIDEOBOT_CHANNEL_METADATA")
	v.BindEnv("messaging.channels.frames", "VIDEOBOT_CHANNEL_FRAMES")
	v.BindEnv("messaging.channels.analysis", "VIDEOBOT_CHANNEL_ANALYSIS")
	v.BindEnv("messaging.channels.debug", "VIDEOBOT_CHANNEL_DEBUG")
	v.BindEnv("messaging.channels.control", "VIDEOBOT_CHANNEL_CONTROL")
	v.BindEnv("recorder.output_dir", "VIDEOBOT_RECORDER_OUTPUT_DIR")

	v.SetConfigName("videobot")
	v.SetConfigType("yaml")
	for _, path := range []string{".", "$HOME/.videobot", "/etc/videobot"} {
		v.AddConfigPath(os.ExpandEnv(path))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Sprintf("fatal error reading config file: %s", err))
		}
	}
}

// BotID returns the configured bot identity, possibly empty.
func BotID() string { return v.GetString("bot.id") }

// MessagingEndpoint returns the bus websocket URL bots connect to.
func MessagingEndpoint() string { return v.GetString("messaging.endpoint") }

// Channels bundles the channel names a bot pipeline is wired to.
type Channels struct {
	Metadata string
	Frames   string
	Analysis string
	Debug    string
	Control  string
}

// MessagingChannels returns the configured channel names.
func MessagingChannels() Channels {
	return Channels{
		Metadata: v.GetString("messaging.channels.metadata"),
		Frames:   v.GetString("messaging.channels.frames"),
		Analysis: v.GetString("messaging.channels.analysis"),
		Debug:    v.GetString("messaging.channels.debug"),
		Control:  v.GetString("messaging.channels.control"),
	}
}

// RecorderOutputDir returns the directory recorded container files are
// written under, creating it if necessary.
func RecorderOutputDir() (string, error) {
	dir := v.GetString("recorder.output_dir")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Set overrides a single configuration key, for use by cmd's flag
// binding and by tests that want a hermetic configuration.
func Set(key string, value any) { v.Set(key, value) }
