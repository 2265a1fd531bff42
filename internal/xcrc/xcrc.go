// Package xcrc reads per-project .xcrc settings files.
//
// A settings file holds key=value pairs separated by ";" on one or more
// lines. Lines starting with "#" are comments, and a "#" that opens a
// segment comments out the rest of the line. Values may be wrapped in single
// or double quotes to keep ";" "#" and surrounding spaces.
//
//	# build settings
//	scheme=App; configuration=Debug
//	destination="platform=iOS Simulator,name=iPhone 15"; formatter=xcbeautify
package xcrc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
)

// FileName is the settings file looked up in the project root.
const FileName = ".xcrc"

var ErrNoProjectRoot = errors.New("no " + FileName + " found")

// Settings maps setting names to their resolved string values.
type Settings map[string]string

func (s Settings) Get(key, def string) string {
	if v, ok := s[key]; ok && v != "" {
		return v
	}
	return def
}

// Keys returns setting names in sorted order.
func (s Settings) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge returns a copy of s with other's values layered on top.
func (s Settings) Merge(other Settings) Settings {
	out := make(Settings, len(s)+len(other))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// SyntaxError reports a malformed segment.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s line %d: %s", FileName, e.Line, e.Msg)
}

// Parse reads settings from r. Later keys override earlier ones.
func Parse(r io.Reader) (Settings, error) {
	settings := make(Settings)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		segments, err := splitSegments(line)
		if err != nil {
			return nil, &SyntaxError{Line: lineNo, Msg: err.Error()}
		}
		for _, segment := range segments {
			key, value, err := parseSegment(segment)
			if err != nil {
				return nil, &SyntaxError{Line: lineNo, Msg: err.Error()}
			}
			if key == "" {
				continue
			}
			settings[key] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", FileName, err)
	}
	return settings, nil
}

// Load parses the settings file at path.
func Load(path string) (Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	settings, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return settings, nil
}

// FindRoot walks up from start and returns the first directory holding a settings file.
func FindRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", start, err)
	}
	for {
		info, err := os.Stat(filepath.Join(dir, FileName))
		if err == nil && !info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w above %s", ErrNoProjectRoot, start)
		}
		dir = parent
	}
}

// splitSegments cuts a line on ";" outside quotes and drops a trailing comment.
func splitSegments(line string) ([]string, error) {
	var segments []string
	var current strings.Builder
	var quote rune

	for _, c := range line {
		switch {
		case quote != 0:
			current.WriteRune(c)
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
			current.WriteRune(c)
		case c == ';':
			segments = append(segments, current.String())
			current.Reset()
		case c == '#' && opensComment(current.String()):
			segments = append(segments, current.String())
			return segments, nil
		default:
			current.WriteRune(c)
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	return append(segments, current.String()), nil
}

func opensComment(segment string) bool {
	if strings.TrimSpace(segment) == "" {
		return true
	}
	r := []rune(segment)
	return unicode.IsSpace(r[len(r)-1])
}

func parseSegment(segment string) (string, string, error) {
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return "", "", nil
	}
	key, value, ok := strings.Cut(segment, "=")
	if !ok {
		return "", "", fmt.Errorf("expected key=value, got %q", segment)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", fmt.Errorf("missing key in %q", segment)
	}
	return key, unquote(strings.TrimSpace(value)), nil
}

func unquote(value string) string {
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if (first == '"' || first == '\'') && first == last {
			return value[1 : len(value)-1]
		}
	}
	return value
}
