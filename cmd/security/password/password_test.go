package password

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// fastConfig keeps the default policy but uses the cheapest accepted Argon2id cost.
func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return cfg
}

func TestHashAndVerify_OK(t *testing.T) {
	cfg := DefaultConfig()

	h, err := cfg.Hash("securepassword123")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(h, "$argon2id$v=19$") {
		t.Fatalf("unexpected hash format: %q", h)
	}

	ok, err := cfg.Verify(h, "securepassword123")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatalf("expected match")
	}
}

func TestVerify_WrongPassword(t *testing.T) {
	cfg := fastConfig()

	h, err := cfg.Hash("securepassword123")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := cfg.Verify(h, "wrongpassword123")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatch")
	}
}

func TestHash_SaltsDiffer(t *testing.T) {
	cfg := fastConfig()

	a, err := cfg.Hash("securepassword123")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	b, err := cfg.Hash("securepassword123")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct salts, got identical hashes")
	}
}

func TestHash_RejectsPolicyViolations(t *testing.T) {
	cfg := fastConfig()

	if _, err := cfg.Hash("short"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	if _, err := cfg.Hash(strings.Repeat("x", DefaultMaxLength+1)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestValidate_ShopperBounds(t *testing.T) {
	cfg := DefaultConfig()

	cases := []struct {
		name string
		in   string
		want error
	}{
		{name: "eleven", in: strings.Repeat("a", 11), want: ErrPasswordTooShort},
		{name: "twelve", in: "abcdefghijk1", want: nil},
		{name: "max", in: strings.Repeat("ab", DefaultMaxLength/2), want: nil},
		{name: "over max", in: strings.Repeat("ab", DefaultMaxLength/2) + "c", want: ErrPasswordTooLong},
		// 12 runes, 24 bytes: length is counted in characters.
		{name: "multibyte", in: strings.Repeat("é", 12), want: nil},
	}

	for _, tc := range cases {
		got := cfg.Validate(tc.in)
		if !errors.Is(got, tc.want) && !(got == nil && tc.want == nil) {
			t.Fatalf("%s: Validate=%v want=%v", tc.name, got, tc.want)
		}
	}
}

func TestVerify_InvalidHash(t *testing.T) {
	cfg := DefaultConfig()

	for _, h := range []string{
		"not-a-hash",
		"$argon2id$v=18$m=65536,t=3,p=1$c2FsdHNhbHQ$aGFzaGhhc2g",
		"$argon2i$v=19$m=65536,t=3,p=1$c2FsdHNhbHQ$aGFzaGhhc2g",
		"$argon2id$v=19$m=0,t=3,p=1$c2FsdHNhbHQ$aGFzaGhhc2g",
	} {
		ok, err := cfg.Verify(h, "whatever")
		if !errors.Is(err, ErrInvalidHash) {
			t.Fatalf("Verify(%q): expected ErrInvalidHash, got %v", h, err)
		}
		if ok {
			t.Fatalf("Verify(%q): expected false", h)
		}
	}
}

func TestVerify_RejectsInflatedParams(t *testing.T) {
	weak := fastConfig()
	strong := fastConfig()
	strong.Params.Iterations = 10

	h, err := strong.Hash("securepassword123")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	if _, err := weak.Verify(h, "securepassword123"); !errors.Is(err, ErrInvalidHash) {
		t.Fatalf("expected ErrInvalidHash for inflated params, got %v", err)
	}
}

func TestVerify_LegacyBcrypt(t *testing.T) {
	cfg := DefaultConfig()

	raw, err := bcrypt.GenerateFromPassword([]byte("securepassword123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	h := string(raw)
	if !IsLegacyHash(h) {
		t.Fatalf("expected %q to be detected as legacy", h)
	}

	ok, err := cfg.Verify(h, "securepassword123")
	if err != nil || !ok {
		t.Fatalf("expected legacy match, ok=%v err=%v", ok, err)
	}

	ok, err = cfg.Verify(h, "wrongpassword123")
	if err != nil || ok {
		t.Fatalf("expected legacy mismatch, ok=%v err=%v", ok, err)
	}

	ok, err = cfg.Verify("$2a$04$broken", "securepassword123")
	if !errors.Is(err, ErrInvalidHash) || ok {
		t.Fatalf("expected ErrInvalidHash for malformed bcrypt, ok=%v err=%v", ok, err)
	}
}

func TestPolicy_RejectVeryWeak(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.RejectVeryWeak = true
	cfg.Policy.MinLength = 8

	if err := cfg.Validate("password"); err != ErrWeakPassword {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := cfg.Validate("11111111"); err != ErrWeakPassword {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := cfg.Validate("a-very-ok-pass"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}
