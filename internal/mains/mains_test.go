package mains

import "testing"

func TestFrequencyForTimezone(t *testing.T) {
	tests := []struct {
		timezone string
		want     int
	}{
		{"Europe/London", 50},
		{"Europe/Berlin", 50},
		{"Australia/Sydney", 50},
		{"Asia/Tokyo", 50},
		{"America/New_York", 60},
		{"America/Toronto", 60},
		{"America/Sao_Paulo", 60},
		{"Asia/Seoul", 60},
		{"UTC", 50},
		{"Etc/UTC", 50},
		{"Not/AZone", 50},
	}

	for _, tt := range tests {
		t.Run(tt.timezone, func(t *testing.T) {
			if got := FrequencyForTimezone(tt.timezone); got != tt.want {
				t.Errorf("FrequencyForTimezone(%q) = %d, want %d", tt.timezone, got, tt.want)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	if got := Resolve(Off); got != 0 {
		t.Errorf("Resolve(Off) = %d, want 0", got)
	}
	if got := Resolve(-7); got != 0 {
		t.Errorf("Resolve(-7) = %d, want 0", got)
	}
	if got := Resolve(60); got != 60 {
		t.Errorf("Resolve(60) = %d, want 60", got)
	}
	if got := Resolve(Auto); got != 50 && got != 60 {
		t.Errorf("Resolve(Auto) = %d, want 50 or 60", got)
	}
}
