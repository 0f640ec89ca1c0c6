package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tbourn/go-comic-bot/internal/domain"
)

// GuildSeed is one entry of the guild seed file. Ids are strings so YAML
// does not round large snowflakes through floats.
type GuildSeed struct {
	GuildID    string `yaml:"guild_id"`
	ChannelID  string `yaml:"channel_id"`
	RatingMode string `yaml:"rating_mode"`
}

type guildFile struct {
	Guilds []GuildSeed `yaml:"guilds"`
}

// LoadGuilds reads a YAML seed file:
//
//	guilds:
//	  - guild_id: "123456789012345678"
//	    channel_id: "223456789012345678"
//	    rating_mode: widget
//
// An empty path yields no guilds. rating_mode defaults to widget and an
// empty channel_id leaves the guild without a channel.
func LoadGuilds(path string) ([]domain.Guild, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read guilds file: %w", err)
	}
	return ParseGuilds(raw)
}

// ParseGuilds decodes the seed file format described at LoadGuilds.
// Unknown keys and duplicate guild ids are rejected.
func ParseGuilds(raw []byte) ([]domain.Guild, error) {
	var f guildFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse guilds file: %w", err)
	}

	seen := make(map[uint64]struct{}, len(f.Guilds))
	out := make([]domain.Guild, 0, len(f.Guilds))
	for i, s := range f.Guilds {
		g, err := s.toGuild()
		if err != nil {
			return nil, fmt.Errorf("guilds[%d]: %w", i, err)
		}
		if _, dup := seen[g.GuildID]; dup {
			return nil, fmt.Errorf("guilds[%d]: duplicate guild_id %d", i, g.GuildID)
		}
		seen[g.GuildID] = struct{}{}
		out = append(out, g)
	}
	return out, nil
}

func (s GuildSeed) toGuild() (domain.Guild, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s.GuildID), 10, 64)
	if err != nil || id == 0 {
		return domain.Guild{}, fmt.Errorf("invalid guild_id %q", s.GuildID)
	}
	g := domain.Guild{GuildID: id, RatingMode: domain.RatingWidget}

	if ch := strings.TrimSpace(s.ChannelID); ch != "" {
		cid, err := strconv.ParseUint(ch, 10, 64)
		if err != nil || cid == 0 {
			return domain.Guild{}, fmt.Errorf("invalid channel_id %q", s.ChannelID)
		}
		g.ChannelID = &cid
	}
	if s.RatingMode != "" {
		mode, err := domain.ParseRatingMode(s.RatingMode)
		if err != nil {
			return domain.Guild{}, err
		}
		g.RatingMode = mode
	}
	return g, nil
}
