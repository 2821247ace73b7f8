package chat

import "testing"

func TestFilterContainsProfanity(t *testing.T) {
	f := NewFilter("verboten")

	tests := []struct {
		body string
		want bool
	}{
		{"hello everyone", false},
		{"this is fucking ridiculous", true},
		{"SHIT happens", true},
		{"totally verboten word", true},
		{"", false},
	}
	for _, tt := range tests {
		if got := f.ContainsProfanity(tt.body); got != tt.want {
			t.Errorf("ContainsProfanity(%q) = %v, want %v", tt.body, got, tt.want)
		}
	}
}

func TestFilterContainsLink(t *testing.T) {
	f := NewFilter()

	tests := []struct {
		body string
		want bool
	}{
		{"check https://example.com/page", true},
		{"check HTTP://EXAMPLE.COM", true},
		{"go to www.example.com now", true},
		{"no links here", false},
		{"wwwonderful", false},
	}
	for _, tt := range tests {
		if got := f.ContainsLink(tt.body); got != tt.want {
			t.Errorf("ContainsLink(%q) = %v, want %v", tt.body, got, tt.want)
		}
	}
}
