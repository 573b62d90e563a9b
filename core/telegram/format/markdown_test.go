package format

import "testing"

func TestEscapeMarkdownV2(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"a.b-c!", `a\.b\-c\!`},
		{"user@example.com", `user@example\.com`},
		{"*bold*_it_", `\*bold\*\_it\_`},
		{"", ""},
	}
	for _, tc := range cases {
		if got := EscapeMarkdownV2(tc.in); got != tc.want {
			t.Fatalf("EscapeMarkdownV2(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEscapeMarkdown(t *testing.T) {
	if got := EscapeMarkdown("a_b*c"); got != `a\_b\*c` {
		t.Fatalf("EscapeMarkdown = %q", got)
	}
}
