package money

import "testing"

func TestValidAmount(t *testing.T) {
	valid := []string{"1", "0.5", ".5", "12.5", "100.000001", " 42 "}
	for _, s := range valid {
		if !ValidAmount(s) {
			t.Errorf("ValidAmount(%q) = false, want true", s)
		}
	}
	invalid := []string{"", "0", "0.0", "-1", "+1", "1e5", "1,000", "abc", "1.2.3", "1/2"}
	for _, s := range invalid {
		if ValidAmount(s) {
			t.Errorf("ValidAmount(%q) = true, want false", s)
		}
	}
}

func TestScale(t *testing.T) {
	cases := []struct {
		human    string
		decimals int
		want     string
	}{
		{"12.5", 6, "12500000"},
		{"1", 6, "1000000"},
		{"0.000001", 6, "1"},
		{"0.1", 8, "10000000"},
		{"99.99", 2, "9999"},
		{"1.005", 2, "101"},      // half rounds up
		{"0.0000004", 6, "0"},    // below half rounds down
		{"0.0000005", 6, "1"},    // exactly half rounds up
		{"2.5", 0, "3"},
	}
	for _, tc := range cases {
		got, err := Scale(tc.human, tc.decimals)
		if err != nil {
			t.Errorf("Scale(%q, %d) error: %v", tc.human, tc.decimals, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Scale(%q, %d) = %q, want %q", tc.human, tc.decimals, got, tc.want)
		}
	}

	if _, err := Scale("-1", 6); err == nil {
		t.Error("Scale(-1) accepted a negative amount")
	}
	if _, err := Scale("0", 6); err == nil {
		t.Error("Scale(0) accepted zero")
	}
}

func TestFormatUnits(t *testing.T) {
	cases := []struct {
		raw      string
		decimals int
		want     string
	}{
		{"12500000", 6, "12.5"},
		{"1000000", 6, "1"},
		{"1", 6, "0.000001"},
		{"9999", 2, "99.99"},
		{"0", 6, "0"},
		{"42", 0, "42"},
		{"-12500000", 6, "-12.5"},
	}
	for _, tc := range cases {
		got, err := FormatUnits(tc.raw, tc.decimals)
		if err != nil {
			t.Errorf("FormatUnits(%q, %d) error: %v", tc.raw, tc.decimals, err)
			continue
		}
		if got != tc.want {
			t.Errorf("FormatUnits(%q, %d) = %q, want %q", tc.raw, tc.decimals, got, tc.want)
		}
	}

	if _, err := FormatUnits("12.5", 6); err == nil {
		t.Error("FormatUnits accepted a non-integer input")
	}
}
