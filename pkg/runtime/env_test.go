package runtime

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDotEnvFiles_DoesNotOverrideExisting(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, ".env.local")
	base := filepath.Join(dir, ".env")
	if err := os.WriteFile(local, []byte("IG_TEST_A=local\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(base, []byte("IG_TEST_A=base\nIG_TEST_B=base\nIG_TEST_C=base\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("IG_TEST_A", "")
	t.Setenv("IG_TEST_B", "")
	os.Unsetenv("IG_TEST_A")
	os.Unsetenv("IG_TEST_B")
	t.Setenv("IG_TEST_C", "preset")

	if err := loadDotEnvFiles("[test]", []string{local, base, filepath.Join(dir, "missing.env")}); err != nil {
		t.Fatalf("loadDotEnvFiles: %v", err)
	}
	if got := os.Getenv("IG_TEST_A"); got != "local" {
		t.Fatalf("IG_TEST_A=%q, want local", got)
	}
	if got := os.Getenv("IG_TEST_B"); got != "base" {
		t.Fatalf("IG_TEST_B=%q, want base", got)
	}
	if got := os.Getenv("IG_TEST_C"); got != "preset" {
		t.Fatalf("IG_TEST_C=%q, want preset", got)
	}
}

func TestIsDotEnvDisabled(t *testing.T) {
	t.Setenv("IG_DOTENV", "off")
	if !IsDotEnvDisabled() {
		t.Fatalf("expected disabled")
	}
	t.Setenv("IG_DOTENV", "1")
	if IsDotEnvDisabled() {
		t.Fatalf("expected enabled")
	}
}

func TestValidateHTTPURL(t *testing.T) {
	t.Parallel()

	if err := ValidateHTTPURL("https://discord.com/api/webhooks/1/abc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, bad := range []string{"", "discord.com/api", "ftp://x/y", "https://"} {
		if err := ValidateHTTPURL(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
