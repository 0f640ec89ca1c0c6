package utils

import (
	"errors"
	"testing"
)

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		s    string
		def  int
		want int
	}{
		{"", 10, 10},
		{"42", 0, 42},
		{"-13", 1, -13},
		{"0012", 99, 12},
		{"x", 5, 5},
		{" 42", 7, 7},
		{"999999999999999999999999", -1, -1},
	}
	for _, tc := range cases {
		if got := AtoiDefault(tc.s, tc.def); got != tc.want {
			t.Fatalf("AtoiDefault(%q, %d) = %d; want %d", tc.s, tc.def, got, tc.want)
		}
	}
}

func TestClampLimit(t *testing.T) {
	cases := []struct{ n, def, max, want int }{
		{0, 10, 30, 10},
		{-5, 10, 30, 10},
		{5, 10, 30, 5},
		{100, 10, 30, 30},
		{0, 0, 30, 1},
	}
	for _, tc := range cases {
		if got := ClampLimit(tc.n, tc.def, tc.max); got != tc.want {
			t.Fatalf("ClampLimit(%d, %d, %d) = %d; want %d", tc.n, tc.def, tc.max, got, tc.want)
		}
	}
}

func TestParseSnowflake(t *testing.T) {
	if id, err := ParseSnowflake("123456789012345678"); err != nil || id != 123456789012345678 {
		t.Fatalf("ParseSnowflake = %d, %v", id, err)
	}
	for _, bad := range []string{"", "0", "-1", "abc", "18446744073709551616"} {
		if _, err := ParseSnowflake(bad); !errors.Is(err, ErrInvalidID) {
			t.Fatalf("ParseSnowflake(%q) err = %v", bad, err)
		}
	}
}

func TestParseComicID(t *testing.T) {
	if id, err := ParseComicID(" 7 "); err != nil || id != 7 {
		t.Fatalf("ParseComicID = %d, %v", id, err)
	}
	for _, bad := range []string{"", "0", "x", "-3"} {
		if _, err := ParseComicID(bad); !errors.Is(err, ErrInvalidID) {
			t.Fatalf("ParseComicID(%q) err = %v", bad, err)
		}
	}
}
