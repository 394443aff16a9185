package core

import (
	"errors"
	"testing"
)

func TestParseID(t *testing.T) {
	const canonical = "0f8fad5b-d9cb-469f-a165-70867728950e"

	tests := []struct {
		in   string
		want string
	}{
		{canonical, canonical},
		{"0f8fad5bd9cb469fa16570867728950e", canonical},
		{"0F8FAD5B-D9CB-469F-A165-70867728950E", canonical},
		{"{0f8fad5b-d9cb-469f-a165-70867728950e}", canonical},
	}
	for _, tt := range tests {
		got, err := ParseID(tt.in)
		if err != nil {
			t.Fatalf("ParseID(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"", "42", "0f8fad5b-d9cb-469f-a165", "zzzzzzzz-d9cb-469f-a165-70867728950e"} {
		if _, err := ParseID(bad); !errors.Is(err, ErrInvalidID) {
			t.Fatalf("ParseID(%q): expected ErrInvalidID, got %v", bad, err)
		}
	}
}

func TestPageBounds(t *testing.T) {
	tests := []struct {
		total, index, size int
		start, end         int
	}{
		{10, 0, 3, 0, 3},
		{10, 3, 3, 9, 10},
		{10, 4, 3, 10, 10},
		{10, 0, 0, 10, 10},
		{0, 0, 5, 0, 0},
		{10, 1, 10, 10, 10},
		{10, 0, 1 << 30, 0, 10},
	}
	for _, tt := range tests {
		start, end := PageBounds(tt.total, tt.index, tt.size)
		if start != tt.start || end != tt.end {
			t.Fatalf("PageBounds(%d, %d, %d) = [%d, %d), want [%d, %d)", tt.total, tt.index, tt.size, start, end, tt.start, tt.end)
		}
	}
}

func TestPageOffset(t *testing.T) {
	if off, ok := PageOffset(3, 25); !ok || off != 75 {
		t.Fatalf("expected offset 75, got %d ok=%v", off, ok)
	}
	if _, ok := PageOffset(1<<31-1, 1<<31-1); !ok {
		t.Fatalf("expected representable offset")
	}
	if off, ok := PageOffset(7, 0); !ok || off != 0 {
		t.Fatalf("expected zero offset for count-only call, got %d ok=%v", off, ok)
	}
}

func TestValidatePage(t *testing.T) {
	if err := ValidatePage(0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidatePage(-1, 0); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if err := ValidatePage(0, -1); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestEscapeFilename(t *testing.T) {
	tests := map[string]string{
		"Shop":          "Shop",
		"My.App":        "My.App",
		"shop/eu":       "shop%2Feu",
		"shop_eu":       "shop_eu",
		"100%":          "100%25",
		"Café":          "Caf%C3%A9",
		"../etc/passwd": "%2E.%2Fetc%2Fpasswd",
		`a\b:c`:         "a%5Cb%3Ac",
		" spaced ":      "%20spaced%20",
		"..":            "%2E%2E",
		".":             "%2E",
		"":              "%",
	}
	for in, want := range tests {
		got := EscapeFilename(in)
		if got != want {
			t.Fatalf("EscapeFilename(%q) = %q, want %q", in, got, want)
		}
		back, err := UnescapeFilename(got)
		if err != nil || back != in {
			t.Fatalf("UnescapeFilename(%q) = %q, %v; want %q", got, back, err, in)
		}
	}

	pairs := [][2]string{{"shop/eu", "shop_eu"}, {"Café", "Caf_"}, {"a:b", "a_b"}, {"x%2Fy", "x/y"}}
	for _, p := range pairs {
		if EscapeFilename(p[0]) == EscapeFilename(p[1]) {
			t.Fatalf("%q and %q share directory %q", p[0], p[1], EscapeFilename(p[0]))
		}
	}
}

func TestStoreError(t *testing.T) {
	if NewStoreError("s", "op", nil) != nil {
		t.Fatalf("expected nil for nil cause")
	}
	cause := errors.New("disk full")
	err := NewStoreError("XML File-Based Error Log", "log", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to unwrap")
	}
	var se *StoreError
	if !errors.As(err, &se) || se.Op != "log" {
		t.Fatalf("expected *StoreError with op, got %#v", err)
	}
}
