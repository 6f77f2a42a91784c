package identity

import "testing"

func TestFormatKey(t *testing.T) {
	cases := map[string]string{
		"a@x.com":            "a-x-com",
		"b@y.com":            "b-y-com",
		"first.last@mail.co": "first-last-mail-co",
		"no-at-or-dot":       "no-at-or-dot",
	}
	for in, want := range cases {
		if got := FormatKey(in); got != want {
			t.Fatalf("FormatKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatKeyDeterministic(t *testing.T) {
	if FormatKey("user@host.org") != FormatKey("user@host.org") {
		t.Fatal("formatting the same identity twice yielded different keys")
	}
}

func TestFormatKeyInjectiveOverSample(t *testing.T) {
	emails := []string{
		"a@x.com", "b@y.com", "ab@x.com", "a@xy.com",
		"gabriel@mail.com", "gabriela@mail.com", "g.abriel@mail.com",
	}
	seen := map[string]string{}
	for _, e := range emails {
		k := FormatKey(e)
		if prev, ok := seen[k]; ok {
			t.Fatalf("collision: %q and %q both map to %q", prev, e, k)
		}
		seen[k] = e
	}
}
