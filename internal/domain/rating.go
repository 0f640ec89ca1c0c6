package domain

import (
	"fmt"
	"strings"
)

// Rating bounds accepted by the vote table.
const (
	MinRating = 1
	MaxRating = 5
)

// RatingMode controls how a guild's posts take part in rating.
type RatingMode int

const (
	// RatingNone posts the comic without any rating support. Comics seen only
	// by such guilds are never closed.
	RatingNone RatingMode = iota
	// RatingWidget attaches the interactive voting buttons.
	RatingWidget
	// RatingSnoop posts without buttons but still gets the final results.
	RatingSnoop
)

// RatingModes lists every mode in declaration order.
var RatingModes = []RatingMode{RatingNone, RatingWidget, RatingSnoop}

func (m RatingMode) String() string {
	switch m {
	case RatingNone:
		return "none"
	case RatingWidget:
		return "widget"
	case RatingSnoop:
		return "snoop"
	}
	return fmt.Sprintf("RatingMode(%d)", int(m))
}

// Valid reports whether m is one of the declared modes.
func (m RatingMode) Valid() bool {
	switch m {
	case RatingNone, RatingWidget, RatingSnoop:
		return true
	}
	return false
}

// AttachesWidget reports whether posts in this mode carry the vote buttons.
func (m RatingMode) AttachesWidget() bool {
	switch m {
	case RatingWidget:
		return true
	case RatingNone, RatingSnoop:
		return false
	}
	return false
}

// Finalizes reports whether the poll closer edits posts in this mode and
// counts them towards closing the comic.
func (m RatingMode) Finalizes() bool {
	switch m {
	case RatingWidget, RatingSnoop:
		return true
	case RatingNone:
		return false
	}
	return false
}

// ParseRatingMode accepts a mode name ("none", "widget", "snoop") or its
// numeric value.
func ParseRatingMode(s string) (RatingMode, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for _, m := range RatingModes {
		if v == m.String() || v == fmt.Sprint(int(m)) {
			return m, nil
		}
	}
	return RatingNone, fmt.Errorf("unknown rating mode %q", s)
}

// ValidRating reports whether r is inside the accepted rating range.
func ValidRating(r int) bool { return r >= MinRating && r <= MaxRating }
