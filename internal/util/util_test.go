package util

import "testing"

func TestNormalizeCallSign(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"Лиса#1", "лиса#1"},
		{"ЁЖ#3", "еж#3"},
		{"  Хорёк#2  ", "хорек#2"},
		{"04821", "04821"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeCallSign(tc.in); got != tc.want {
			t.Errorf("NormalizeCallSign(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeCallSignInvariant(t *testing.T) {
	t.Parallel()

	// Applying the fold twice changes nothing: stored values and incoming
	// terms land in the same space.
	for _, s := range []string{"Ёж#1", "лиса#10", "БУРУНДУК#2"} {
		once := NormalizeCallSign(s)
		if twice := NormalizeCallSign(once); twice != once {
			t.Errorf("normalization is not idempotent for %q: %q vs %q", s, once, twice)
		}
	}
}
