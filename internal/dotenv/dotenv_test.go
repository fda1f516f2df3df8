package dotenv

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFile_MissingFileIsNoop(t *testing.T) {
	t.Parallel()
	if err := LoadFile(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("LoadFile missing file error: %v", err)
	}
}

func TestLoadFile_LoadsValuesAndPreservesExisting(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")
	content := "" +
		"# local overrides\n" +
		"ENGAGE_ADDR=:9090\n" +
		"ENGAGE_SYSTEM_PROMPT=\"You are Maria\"\n" +
		"export ENGAGE_GEMINI_MODEL=gemini-2.0-flash\n" +
		"ENGAGE_ADMIN_PASSWORD=existing\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("ENGAGE_ADMIN_PASSWORD", "from_env")

	if err := LoadFile(envPath); err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}

	if got := os.Getenv("ENGAGE_ADDR"); got != ":9090" {
		t.Fatalf("ENGAGE_ADDR=%q, want %q", got, ":9090")
	}
	if got := os.Getenv("ENGAGE_SYSTEM_PROMPT"); got != "You are Maria" {
		t.Fatalf("ENGAGE_SYSTEM_PROMPT=%q, want %q", got, "You are Maria")
	}
	if got := os.Getenv("ENGAGE_GEMINI_MODEL"); got != "gemini-2.0-flash" {
		t.Fatalf("ENGAGE_GEMINI_MODEL=%q, want %q", got, "gemini-2.0-flash")
	}
	if got := os.Getenv("ENGAGE_ADMIN_PASSWORD"); got != "from_env" {
		t.Fatalf("ENGAGE_ADMIN_PASSWORD=%q, want existing value preserved", got)
	}
}

func TestParseLine(t *testing.T) {
	t.Parallel()
	cases := []struct {
		line string
		key  string
		val  string
		ok   bool
	}{
		{"KEY=value", "KEY", "value", true},
		{"export KEY=value", "KEY", "value", true},
		{`KEY="quoted value"`, "KEY", "quoted value", true},
		{"KEY='single'", "KEY", "single", true},
		{"KEY=value # trailing", "KEY", "value", true},
		{"# comment", "", "", false},
		{"", "", "", false},
		{"=nokey", "", "", false},
		{"no_equals", "", "", false},
	}
	for _, tc := range cases {
		key, val, ok := parseLine(tc.line)
		if key != tc.key || val != tc.val || ok != tc.ok {
			t.Errorf("parseLine(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tc.line, key, val, ok, tc.key, tc.val, tc.ok)
		}
	}
}
