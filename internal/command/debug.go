package command

import (
	"fmt"
	"sort"

	"github.com/tendant/simple-xcede/internal/process"
	"github.com/tendant/simple-xcede/internal/xcrc"
)

// DebugInfo is the report behind the show-debug-info action.
type DebugInfo struct {
	Executable      string            `json:"executable"`
	ExecutablePath  string            `json:"executable_path,omitempty"`
	ExecutableError string            `json:"executable_error,omitempty"`
	ProjectRoot     string            `json:"project_root"`
	Settings        map[string]string `json:"settings"`
	Commands        map[string]string `json:"commands"`
	State           process.State     `json:"state"`
	Status          string            `json:"status"`
}

// CollectDebugInfo resolves the executable and renders every catalogued action.
func (b *Builder) CollectDebugInfo(root string, settings xcrc.Settings, state process.State, action string) DebugInfo {
	info := DebugInfo{
		Executable:  b.catalog.Executable,
		ProjectRoot: root,
		Settings:    map[string]string(settings),
		Commands:    make(map[string]string, len(b.catalog.Actions)),
		State:       state,
		Status:      process.StatusText(state, action),
	}
	if info.Settings == nil {
		info.Settings = map[string]string{}
	}
	if path, err := b.Require(); err != nil {
		info.ExecutableError = err.Error()
	} else {
		info.ExecutablePath = path
	}
	for _, name := range b.catalog.Names() {
		line, err := b.Command(name, settings)
		if err != nil {
			line = "error: " + err.Error()
		}
		info.Commands[name] = line
	}
	return info
}

// Lines renders the report for a terminal or an output buffer.
func (d DebugInfo) Lines() []string {
	lines := []string{
		"executable: " + d.Executable,
	}
	if d.ExecutablePath != "" {
		lines = append(lines, "executable path: "+d.ExecutablePath)
	}
	if d.ExecutableError != "" {
		lines = append(lines, "executable error: "+d.ExecutableError)
	}
	lines = append(lines,
		"project root: "+d.ProjectRoot,
		fmt.Sprintf("state: %s (%s)", d.State, d.Status),
		"settings:",
	)
	for _, key := range sortedKeys(d.Settings) {
		lines = append(lines, fmt.Sprintf("  %s=%s", key, d.Settings[key]))
	}
	lines = append(lines, "commands:")
	for _, name := range sortedKeys(d.Commands) {
		lines = append(lines, fmt.Sprintf("  %s: %s", name, d.Commands[name]))
	}
	return lines
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
