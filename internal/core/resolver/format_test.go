package resolver

import "testing"

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"PT4M13S", "4:13"},
		{"PT1H2M3S", "1:02:03"},
		{"PT45S", "0:45"},
		{"PT3M", "3:00"},
		{"PT2H", "2:00:00"},
		{"253", "4:13"},
		{"3723", "1:02:03"},
		{"0", "0:00"},
		{"", "Unknown"},
		{"Unknown", "Unknown"},
		{"P1DT2H", "P1DT2H"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := FormatDuration(tt.in); got != tt.want {
				t.Errorf("FormatDuration(%q) = %q; want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatViewCount(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1.0K"},
		{1500, "1.5K"},
		{2_340_000, "2.3M"},
		{1_000_000_000, "1.0B"},
	}
	for _, tt := range tests {
		if got := FormatViewCount(tt.in); got != tt.want {
			t.Errorf("FormatViewCount(%d) = %q; want %q", tt.in, got, tt.want)
		}
	}
}
