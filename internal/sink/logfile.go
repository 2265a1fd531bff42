package sink

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tendant/simple-xcede/internal/process"
)

// LogFile writes one job's output to its own file under a base directory.
type LogFile struct {
	path   string
	file   *os.File
	buf    *bufio.Writer
	logger *slog.Logger
	start  time.Time
}

// NewLogFile creates <baseDir>/<action>_<timestamp>.log and writes the command header.
func NewLogFile(baseDir, action, command string, logger *slog.Logger) (*LogFile, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	now := time.Now()
	base := fmt.Sprintf("%s_%s", sanitize(action), now.Format("20060102_150405.000"))
	f, path, err := createUnique(baseDir, base)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}

	l := &LogFile{path: path, file: f, buf: bufio.NewWriter(f), logger: logger, start: now}
	fmt.Fprintf(l.buf, "$ %s\n\n", command)
	return l, nil
}

func (l *LogFile) Path() string { return l.path }

// Abort closes and removes a log file whose job never started.
func (l *LogFile) Abort() {
	if err := l.file.Close(); err != nil {
		l.logger.Warn("close job log failed", "path", l.path, "err", err)
	}
	if err := os.Remove(l.path); err != nil {
		l.logger.Warn("remove job log failed", "path", l.path, "err", err)
	}
}

func (l *LogFile) OnOutput(stream process.Stream, lines []string) {
	prefix := ""
	if stream == process.Stderr {
		prefix = "! "
	}
	for _, line := range lines {
		l.buf.WriteString(prefix)
		l.buf.WriteString(line)
		l.buf.WriteByte('\n')
	}
}

func (l *LogFile) OnExit(code int) {
	fmt.Fprintf(l.buf, "\n%s\n", Summary(code, time.Since(l.start).Round(time.Millisecond)))
	if err := l.buf.Flush(); err != nil {
		l.logger.Warn("flush job log failed", "path", l.path, "err", err)
	}
	if err := l.file.Close(); err != nil {
		l.logger.Warn("close job log failed", "path", l.path, "err", err)
	}
}

// createUnique opens <dir>/<base>.log, or <base>-N.log when that name is taken.
func createUnique(dir, base string) (*os.File, string, error) {
	const maxAttempts = 100
	for i := 0; i < maxAttempts; i++ {
		name := base + ".log"
		if i > 0 {
			name = base + "-" + strconv.Itoa(i) + ".log"
		}
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !os.IsExist(err) {
			return nil, "", err
		}
	}
	return nil, "", fmt.Errorf("no free name for %s in %s", base, dir)
}

// sanitize removes characters that do not belong in file names.
func sanitize(name string) string {
	clean := make([]rune, 0, len(name))
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' {
			clean = append(clean, r)
		}
	}
	if len(clean) == 0 {
		return "job"
	}
	return string(clean)
}
