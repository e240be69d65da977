package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type TelegramConfig struct {
	Token string `toml:"token"`
	Debug bool   `toml:"debug"`
}

type DriveConfig struct {
	CredentialsFile string `toml:"credentials_file"`
	RootFolderID    string `toml:"root_folder_id"`
}

type StorageConfig struct {
	// Offline makes every storage operation a logged no-op; the chat flow
	// stays usable without a reachable backend.
	Offline bool `toml:"offline"`
	// Memory keeps uploads in process memory instead of the cloud; meant
	// for local trials.
	Memory      bool `toml:"memory"`
	MaxAttempts int  `toml:"max_attempts"`
}

type SessionConfig struct {
	IdleTimeoutMinutes int `toml:"idle_timeout_minutes"`
}

type TranscribeConfig struct {
	Endpoint string `toml:"endpoint"`
	APIKey   string `toml:"api_key"`
	Model    string `toml:"model"`
	Language string `toml:"language"`
}

type AdminConfig struct {
	IDs []int64 `toml:"ids"`
}

type Config struct {
	DataDir    string           `toml:"data_dir"`
	Telegram   TelegramConfig   `toml:"telegram"`
	Drive      DriveConfig      `toml:"drive"`
	Storage    StorageConfig    `toml:"storage"`
	Session    SessionConfig    `toml:"session"`
	Transcribe TranscribeConfig `toml:"transcribe"`
	Admin      AdminConfig      `toml:"admin"`
}

func Default() Config {
	return Config{
		DataDir: "data",
		Storage: StorageConfig{
			MaxAttempts: 3,
		},
		Session: SessionConfig{
			IdleTimeoutMinutes: 30,
		},
		Transcribe: TranscribeConfig{
			Language: "ru",
		},
	}
}

// Load reads the TOML file at path on top of the defaults, then applies
// environment overrides for the secrets so they can stay out of the file.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if v := os.Getenv("MEETBOT_TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("MEETBOT_DRIVE_CREDENTIALS"); v != "" {
		cfg.Drive.CredentialsFile = v
	}
	if v := os.Getenv("MEETBOT_TRANSCRIBE_API_KEY"); v != "" {
		cfg.Transcribe.APIKey = v
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Telegram.Token == "" {
		return errors.New("telegram token is required (config [telegram].token or MEETBOT_TELEGRAM_TOKEN)")
	}
	if !c.Storage.Offline && !c.Storage.Memory && c.Drive.CredentialsFile == "" {
		return errors.New("drive credentials are required unless storage.offline or storage.memory is set")
	}
	if c.Session.IdleTimeoutMinutes < 0 {
		return errors.New("session.idle_timeout_minutes must not be negative")
	}
	return nil
}

func (c Config) IdleTimeout() time.Duration {
	return time.Duration(c.Session.IdleTimeoutMinutes) * time.Minute
}

// IsAdmin reports whether the Telegram user may use /admin.
func (c Config) IsAdmin(id int64) bool {
	for _, a := range c.Admin.IDs {
		if a == id {
			return true
		}
	}
	return false
}
