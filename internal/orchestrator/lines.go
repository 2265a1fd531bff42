package orchestrator

import (
	"bytes"
	"strings"
)

const maxLineLength = 1 << 20

// lineSplitter turns raw pipe reads into complete lines, carrying the
// unterminated tail over to the next read.
type lineSplitter struct {
	partial []byte
}

func (s *lineSplitter) Feed(p []byte) []string {
	var lines []string
	for {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			break
		}
		s.partial = append(s.partial, p[:i]...)
		lines = append(lines, trimCR(string(s.partial)))
		s.partial = s.partial[:0]
		p = p[i+1:]
	}
	s.partial = append(s.partial, p...)
	if len(s.partial) >= maxLineLength {
		lines = append(lines, s.Flush()...)
	}
	return lines
}

// Flush returns the pending unterminated line, if any.
func (s *lineSplitter) Flush() []string {
	if len(s.partial) == 0 {
		return nil
	}
	line := trimCR(string(s.partial))
	s.partial = s.partial[:0]
	return []string{line}
}

func trimCR(line string) string {
	return strings.TrimRight(line, "\r")
}
