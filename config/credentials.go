package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	terr "github.com/rustyeddy/equitrader/internal/errors"
)

const (
	EnvTelegramToken  = "TELEGRAM_BOT_TOKEN"
	EnvTelegramChatID = "TELEGRAM_CHAT_ID"
	EnvKiteAPIKey     = "KITE_API_KEY"
	EnvKiteToken      = "KITE_ACCESS_TOKEN"
)

// Credentials are read from the environment, never from the config file.
type Credentials struct {
	TelegramToken  string
	TelegramChatID string
	KiteAPIKey     string
	KiteToken      string
}

// LoadCredentials loads an optional .env file (or the given files) into the
// environment and reads the known keys. Variables already set win.
func LoadCredentials(files ...string) Credentials {
	// A missing .env file is fine.
	_ = godotenv.Load(files...)

	return Credentials{
		TelegramToken:  os.Getenv(EnvTelegramToken),
		TelegramChatID: os.Getenv(EnvTelegramChatID),
		KiteAPIKey:     os.Getenv(EnvKiteAPIKey),
		KiteToken:      os.Getenv(EnvKiteToken),
	}
}

// Require returns a ConfigurationFatal error listing every credential the
// configuration needs but the environment lacks.
func (c Credentials) Require(cfg *Config) error {
	var missing []string
	if cfg.Notify.Telegram {
		if c.TelegramToken == "" {
			missing = append(missing, EnvTelegramToken)
		}
		if c.TelegramChatID == "" {
			missing = append(missing, EnvTelegramChatID)
		}
	}
	if !cfg.Paper.Enabled && cfg.Venue.Kind == "kite" {
		if c.KiteAPIKey == "" {
			missing = append(missing, EnvKiteAPIKey)
		}
		if c.KiteToken == "" {
			missing = append(missing, EnvKiteToken)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return terr.New(terr.ConfigurationFatal, "config", "credentials",
		fmt.Sprintf("missing %s", strings.Join(missing, ", ")))
}
