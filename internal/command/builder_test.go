package command

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tendant/simple-xcede/internal/orchestrator"
	"github.com/tendant/simple-xcede/internal/process"
	"github.com/tendant/simple-xcede/internal/xcrc"
)

func TestCommand(t *testing.T) {
	b := NewBuilder(nil)

	tests := []struct {
		name     string
		action   string
		settings xcrc.Settings
		want     string
	}{
		{"no settings", "build", nil, "xcede build"},
		{"sorted flags", "test", xcrc.Settings{"scheme": "App", "configuration": "Debug"}, "xcede test --configuration Debug --scheme App"},
		{"quoted value", "run", xcrc.Settings{"destination": "platform=iOS Simulator,name=iPhone 15"}, "xcede run --destination 'platform=iOS Simulator,name=iPhone 15'"},
		{"bare flag", "build", xcrc.Settings{"clean": ""}, "xcede build --clean"},
		{"formatter piped", "build-and-run", xcrc.Settings{"scheme": "App", "formatter": "xcbeautify --quiet"}, "xcede buildrun --scheme App | xcbeautify --quiet"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.Command(tt.action, tt.settings)
			if err != nil {
				t.Fatalf("Command returned error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Command(%s) = %q, want %q", tt.action, got, tt.want)
			}
		})
	}
}

func TestCommandRejectsUnsafeSettingNames(t *testing.T) {
	b := NewBuilder(nil)

	for _, key := range []string{
		"scheme;touch /tmp/x;#",
		"my scheme",
		"$(id)",
		"-scheme",
		"scheme#",
		"a|b",
		"",
	} {
		line, err := b.Command("build", xcrc.Settings{key: "App"})
		if !errors.Is(err, ErrInvalidSetting) {
			t.Errorf("key %q: expected ErrInvalidSetting, got line %q err %v", key, line, err)
		}
	}

	line, err := b.Command("build", xcrc.Settings{"only-testing.v2_x": "AppTests"})
	if err != nil {
		t.Fatalf("valid key rejected: %v", err)
	}
	if line != "xcede build --only-testing.v2_x AppTests" {
		t.Fatalf("unexpected command: %q", line)
	}
}

func TestCommandUnknownAction(t *testing.T) {
	b := NewBuilder(nil)
	if _, err := b.Command("deploy", nil); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}
}

func TestRequest(t *testing.T) {
	b := NewBuilder(nil)
	req, err := b.Request("test", "/work/App", xcrc.Settings{"scheme": "AppTests"})
	if err != nil {
		t.Fatalf("Request returned error: %v", err)
	}
	if req.Executable != "xcede" || req.Dir != "/work/App" || req.Action != "test" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.Command != "xcede test --scheme AppTests" {
		t.Fatalf("unexpected command: %q", req.Command)
	}
}

func TestQuote(t *testing.T) {
	tests := map[string]string{
		"App":               "App",
		"":                  "''",
		"My App":            "'My App'",
		"it's":              `'it'\''s'`,
		"$(rm -rf /)":       "'$(rm -rf /)'",
		"Debug-Release_1.0": "Debug-Release_1.0",
	}
	for in, want := range tests {
		if got := Quote(in); got != want {
			t.Errorf("Quote(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseCatalogOverridesAndAdds(t *testing.T) {
	data := []byte(`
executable: /opt/bin/xcede
actions:
  - name: build
    subcommand: build
    formatter: xcbeautify
  - name: lint
    args: ["--strict"]
`)
	catalog, err := ParseCatalog(data)
	if err != nil {
		t.Fatalf("ParseCatalog returned error: %v", err)
	}

	b := NewBuilder(catalog)
	got, err := b.Command("build", nil)
	if err != nil {
		t.Fatalf("Command returned error: %v", err)
	}
	if got != "/opt/bin/xcede build | xcbeautify" {
		t.Fatalf("unexpected build command: %q", got)
	}

	got, err = b.Command("lint", xcrc.Settings{"formatter": "cat"})
	if err != nil {
		t.Fatalf("Command returned error: %v", err)
	}
	if got != "/opt/bin/xcede lint --strict | cat" {
		t.Fatalf("unexpected lint command: %q", got)
	}

	want := []string{"build", "build-and-run", "lint", "run", "test"}
	if names := catalog.Names(); strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("Names() = %v, want %v", names, want)
	}
}

func TestParseCatalogRejectsUnnamedAction(t *testing.T) {
	if _, err := ParseCatalog([]byte("actions:\n  - subcommand: build\n")); err == nil {
		t.Fatal("expected error for unnamed action")
	}
}

func TestLoadCatalog(t *testing.T) {
	catalog, err := LoadCatalog("")
	if err != nil || len(catalog.Actions) != 4 {
		t.Fatalf("expected built-in catalog, got %v %v", catalog, err)
	}

	path := filepath.Join(t.TempDir(), "actions.yaml")
	if err := os.WriteFile(path, []byte("actions:\n  - name: archive\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	catalog, err = LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog returned error: %v", err)
	}
	if _, ok := catalog.Lookup("archive"); !ok {
		t.Fatal("archive action not loaded")
	}

	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestHint(t *testing.T) {
	notFound := &orchestrator.CommandNotFoundError{Name: "xcede", Err: errors.New("not found")}
	err := Hint(notFound)
	if !errors.Is(err, orchestrator.ErrCommandNotFound) {
		t.Fatalf("hint lost the sentinel: %v", err)
	}
	if !strings.Contains(err.Error(), InstallHint) {
		t.Fatalf("hint missing: %v", err)
	}

	other := errors.New("boom")
	if Hint(other) != other {
		t.Fatal("unrelated errors must pass through")
	}
}

func TestCollectDebugInfo(t *testing.T) {
	b := NewBuilder(&Catalog{Executable: "xcede-missing-for-test", Actions: DefaultCatalog().Actions})
	info := b.CollectDebugInfo("/work/App", xcrc.Settings{"scheme": "App"}, process.StateRunning, "build")

	if info.ExecutableError == "" || info.ExecutablePath != "" {
		t.Fatalf("expected unresolved executable, got %+v", info)
	}
	if info.Status != "Building..." {
		t.Fatalf("unexpected status: %s", info.Status)
	}
	if info.Commands["test"] != "xcede-missing-for-test test --scheme App" {
		t.Fatalf("unexpected test command: %q", info.Commands["test"])
	}

	text := strings.Join(info.Lines(), "\n")
	for _, want := range []string{"project root: /work/App", "  scheme=App", "  build: xcede-missing-for-test build --scheme App"} {
		if !strings.Contains(text, want) {
			t.Errorf("debug lines missing %q:\n%s", want, text)
		}
	}
}
