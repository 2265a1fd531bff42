package command

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/tendant/simple-xcede/internal/orchestrator"
	"github.com/tendant/simple-xcede/internal/xcrc"
)

// FormatterKey names the setting that selects an output formatter.
const FormatterKey = "formatter"

// InstallHint is shown when the build CLI cannot be found.
const InstallHint = "brew install xcede"

var (
	ErrUnknownAction  = errors.New("unknown action")
	ErrInvalidSetting = errors.New("invalid setting name")
)

// reserved settings configure the runner itself and are never passed as flags.
var reserved = map[string]bool{
	FormatterKey: true,
}

// Builder renders actions into command lines.
type Builder struct {
	catalog *Catalog
}

func NewBuilder(catalog *Catalog) *Builder {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if catalog.Executable == "" {
		catalog.Executable = DefaultExecutable
	}
	return &Builder{catalog: catalog}
}

func (b *Builder) Catalog() *Catalog { return b.catalog }

func (b *Builder) Executable() string { return b.catalog.Executable }

// Command renders the named action as a single shell command line:
//
//	xcede <subcommand> [args...] --<key> <value>... [| formatter]
//
// Settings are emitted in sorted key order.
func (b *Builder) Command(name string, settings xcrc.Settings) (string, error) {
	action, ok := b.catalog.Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownAction, name)
	}

	parts := []string{Quote(b.catalog.Executable), Quote(action.Subcommand)}
	for _, arg := range action.Args {
		parts = append(parts, Quote(arg))
	}
	for _, key := range settings.Keys() {
		if reserved[key] {
			continue
		}
		if !validKey(key) {
			return "", fmt.Errorf("%w: %q", ErrInvalidSetting, key)
		}
		parts = append(parts, "--"+key)
		if value := settings[key]; value != "" {
			parts = append(parts, Quote(value))
		}
	}

	line := strings.Join(parts, " ")
	if formatter := settings.Get(FormatterKey, action.Formatter); formatter != "" {
		// Formatter is a shell fragment on purpose, e.g. "xcbeautify --quiet".
		line += " | " + formatter
	}
	return line, nil
}

// Request builds an orchestrator request for the action rooted at dir.
func (b *Builder) Request(name, dir string, settings xcrc.Settings) (orchestrator.Request, error) {
	line, err := b.Command(name, settings)
	if err != nil {
		return orchestrator.Request{}, err
	}
	return orchestrator.Request{
		Command:    line,
		Executable: b.catalog.Executable,
		Dir:        dir,
		Action:     name,
	}, nil
}

// Require resolves the build CLI on PATH.
func (b *Builder) Require() (string, error) {
	path, err := exec.LookPath(b.catalog.Executable)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH: %w (install with: %s)", b.catalog.Executable, err, InstallHint)
	}
	return path, nil
}

// Hint decorates orchestrator start errors with installation guidance.
func Hint(err error) error {
	var notFound *orchestrator.CommandNotFoundError
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w (install with: %s)", err, InstallHint)
	}
	return err
}

// validKey reports whether key can be emitted as a --flag without quoting:
// [A-Za-z0-9][A-Za-z0-9_.-]*.
func validKey(key string) bool {
	if key == "" {
		return false
	}
	for i, c := range key {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case i > 0 && (c == '_' || c == '.' || c == '-'):
		default:
			return false
		}
	}
	return true
}

const shellSafe = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_./:=,+@%"

// Quote single-quotes s for a POSIX shell when it holds anything outside a safe set.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.Trim(s, shellSafe) == "" {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
