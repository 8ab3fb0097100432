package convert

import "testing"

func TestParseCommaFloat(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
		wantErr  bool
	}{
		{input: "123,45", expected: 123.45},
		{input: "123.45", expected: 123.45},
		{input: "-12,5", expected: -12.5},
		{input: "0", expected: 0},
		{input: "1 234,56", expected: 1234.56},
		{input: "1\u00a0234,56", expected: 1234.56},
		{input: "", wantErr: true},
		{input: "-", wantErr: true},
		{input: "abc", wantErr: true},
		{input: "12,3,4", wantErr: true},
		{input: "NaN", wantErr: true},
		{input: "Inf", wantErr: true},
		{input: "-Infinity", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCommaFloat(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseCommaFloat(%q) expected error, got %f", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCommaFloat(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("ParseCommaFloat(%q) expected %f, got %f", tt.input, tt.expected, got)
			}
		})
	}
}

func TestRoundFloat64(t *testing.T) {
	if got := RoundFloat64(123.45678, 4); got != 123.4568 {
		t.Errorf("RoundFloat64() expected 123.4568, got %f", got)
	}
	if got := TwoDecimals(0.125); got != 0.13 {
		t.Errorf("TwoDecimals() expected 0.13, got %f", got)
	}
}
