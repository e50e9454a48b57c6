package extract

import "testing"

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"235.000,00", 235000, true},
		{"R$ 235.000,00", 235000, true},
		{"R$ 350.000", 350000, true},
		{"1.250.000", 1250000, true},
		{"1.234,5", 1234.5, true},
		{"80,50", 80.5, true},
		{"68.585", 68585, true},
		{"80.5", 80.5, true},
		{"120", 120, true},
		{"98,50.", 98.5, true},
		{"", 0, false},
		{"R$", 0, false},
		{"abc", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseNumber(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("ParseNumber(%q): expected %v/%v, got %v/%v", tt.in, tt.want, tt.ok, got, ok)
		}
	}
}
