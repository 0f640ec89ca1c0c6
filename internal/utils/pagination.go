// Package utils provides small parsing helpers for request parameters.
package utils

import (
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidID is returned for ids that are not positive decimal integers.
var ErrInvalidID = errors.New("invalid id")

// AtoiDefault parses s as an int, returning def when s is empty or invalid.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// ClampLimit bounds a page size to [1, max]; non-positive n selects def.
func ClampLimit(n, def, max int) int {
	if n <= 0 {
		n = def
	}
	if n > max {
		n = max
	}
	if n < 1 {
		n = 1
	}
	return n
}

// ParseSnowflake parses a chat platform id (guild, channel or user).
func ParseSnowflake(s string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidID
	}
	return id, nil
}

// ParseComicID parses a comic row id.
func ParseComicID(s string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, strconv.IntSize)
	if err != nil || id == 0 {
		return 0, ErrInvalidID
	}
	return uint(id), nil
}
