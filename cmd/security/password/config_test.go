package password

import (
	"os"
	"testing"
)

var envKeys = []string{
	"STOREFRONT_PASSWORD_MIN_LEN",
	"STOREFRONT_PASSWORD_MAX_LEN",
	"STOREFRONT_PASSWORD_REJECT_VERY_WEAK",
	"STOREFRONT_ARGON2_MEMORY_KIB",
	"STOREFRONT_ARGON2_ITERATIONS",
	"STOREFRONT_ARGON2_PARALLELISM",
	"STOREFRONT_ARGON2_SALT_LEN",
	"STOREFRONT_ARGON2_KEY_LEN",
}

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range envKeys {
		if v, ok := os.LookupEnv(k); ok {
			t.Setenv(k, v) // restores on cleanup
			_ = os.Unsetenv(k)
		}
	}

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	def := DefaultConfig()
	if cfg.Policy.MinLength != 12 || cfg.Policy.MaxLength != 128 {
		t.Fatalf("unexpected default policy: %+v", cfg.Policy)
	}
	if cfg.Params.MemoryKiB != def.Params.MemoryKiB {
		t.Fatalf("memory mismatch")
	}
}

func TestFromEnv_Override(t *testing.T) {
	t.Setenv("STOREFRONT_PASSWORD_MIN_LEN", "14")
	t.Setenv("STOREFRONT_PASSWORD_MAX_LEN", "200")
	t.Setenv("STOREFRONT_PASSWORD_REJECT_VERY_WEAK", "yes")
	t.Setenv("STOREFRONT_ARGON2_MEMORY_KIB", "32768")
	t.Setenv("STOREFRONT_ARGON2_ITERATIONS", "4")
	t.Setenv("STOREFRONT_ARGON2_PARALLELISM", "2")
	t.Setenv("STOREFRONT_ARGON2_SALT_LEN", "24")
	t.Setenv("STOREFRONT_ARGON2_KEY_LEN", "32")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	if cfg.Policy.MinLength != 14 || cfg.Policy.MaxLength != 200 || !cfg.Policy.RejectVeryWeak {
		t.Fatalf("policy override failed: %+v", cfg.Policy)
	}
	if cfg.Params.MemoryKiB != 32768 || cfg.Params.Iterations != 4 || cfg.Params.Parallelism != 2 {
		t.Fatalf("argon2 override failed: %+v", cfg.Params)
	}
	if cfg.Params.SaltLength != 24 || cfg.Params.KeyLength != 32 {
		t.Fatalf("len override failed: %+v", cfg.Params)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{name: "min above max", env: map[string]string{"STOREFRONT_PASSWORD_MIN_LEN": "20", "STOREFRONT_PASSWORD_MAX_LEN": "10"}},
		{name: "excludes generated length", env: map[string]string{"STOREFRONT_PASSWORD_MIN_LEN": "30"}},
		{name: "memory too small", env: map[string]string{"STOREFRONT_ARGON2_MEMORY_KIB": "1024"}},
		{name: "not a bool", env: map[string]string{"STOREFRONT_PASSWORD_REJECT_VERY_WEAK": "maybe"}},
		{name: "not a number", env: map[string]string{"STOREFRONT_ARGON2_ITERATIONS": "three"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := FromEnv(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
