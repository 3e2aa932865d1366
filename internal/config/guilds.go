package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// GuildFile is the per-guild configuration file:
//
//	[guilds."123456789"]
//	commands = ["ping", "settings"]
//	features = { welcome = true }
//
//	[guilds."123456789".welcome]
//	enabled = true
//	channel_id = "987654321"
//	message = "Welcome {user}!"
type GuildFile struct {
	Guilds map[string]GuildConfig `toml:"guilds" validate:"dive,keys,numeric,endkeys"`
}

type GuildConfig struct {
	// Commands lists the enabled commands. Absent means all commands, an
	// empty list means none.
	Commands *[]string       `toml:"commands"`
	Features map[string]bool `toml:"features"`
	Welcome  *WelcomeConfig  `toml:"welcome"`
}

type WelcomeConfig struct {
	Enabled   bool         `toml:"enabled"`
	ChannelID string       `toml:"channel_id" validate:"required_if=Enabled true,omitempty,numeric"`
	Message   string       `toml:"message" validate:"max=2000"`
	Embed     *EmbedConfig `toml:"embed"`
}

type EmbedConfig struct {
	Title       string `toml:"title" validate:"max=256"`
	Description string `toml:"description" validate:"max=4096"`
	Color       int    `toml:"color" validate:"gte=0,lte=16777215"`
	ImageURL    string `toml:"image_url" validate:"omitempty,url"`
	Footer      string `toml:"footer" validate:"max=2048"`
}

// LoadGuildFile parses path. A missing file yields an empty configuration.
func LoadGuildFile(path string) (GuildFile, error) {
	var gf GuildFile
	if path == "" {
		return gf, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return gf, nil
	}
	if err != nil {
		return gf, err
	}
	defer f.Close()

	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&gf); err != nil {
		return gf, fmt.Errorf("%s: %w", path, err)
	}
	if err := validateStruct(gf); err != nil {
		return gf, fmt.Errorf("%s: %w", path, err)
	}
	return gf, nil
}
