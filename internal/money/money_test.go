package money

import "testing"

func TestParseCents(t *testing.T) {
	cases := []struct {
		input string
		want  int64
	}{
		{"34.50", 3450},
		{"30", 3000},
		{"0.05", 5},
		{"0.5", 50},
		{"-1.25", -125},
		{"+2.00", 200},
		{".99", 99},
	}
	for _, tc := range cases {
		got, err := ParseCents(tc.input)
		if err != nil {
			t.Fatalf("ParseCents(%q) returned error: %v", tc.input, err)
		}
		if got != tc.want {
			t.Fatalf("ParseCents(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func TestParseCentsRejectsBadInput(t *testing.T) {
	for _, input := range []string{"", "abc", "1.2.3", "1,50", "1.5x"} {
		if _, err := ParseCents(input); err == nil {
			t.Fatalf("ParseCents(%q) accepted invalid input", input)
		}
	}
	if _, err := ParseCents("1.005"); err != ErrTooManyDecimals {
		t.Fatalf("expected ErrTooManyDecimals, got %v", err)
	}
}

func TestFormatCents(t *testing.T) {
	cases := []struct {
		input int64
		want  string
	}{
		{3450, "34.50"},
		{5, "0.05"},
		{0, "0.00"},
		{-125, "-1.25"},
	}
	for _, tc := range cases {
		if got := FormatCents(tc.input); got != tc.want {
			t.Fatalf("FormatCents(%d) = %q, want %q", tc.input, got, tc.want)
		}
	}
}
