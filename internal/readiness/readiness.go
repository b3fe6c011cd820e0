// Package readiness detects the backend's "ready" announcement in its stdout.
//
// The backend prints a single line such as
//
//	Server running on http://127.0.0.1:54231
//
// once its listener is bound. Only the marker substring and the final
// colon-delimited token are significant; everything else on the line is free-form.
package readiness

import (
	"strconv"
	"strings"
)

// Marker is the substring that identifies a readiness announcement.
const Marker = "Server running on"

// Parser extracts a port from readiness announcements.
type Parser struct {
	marker string
}

// NewParser creates a parser for the given marker. An empty marker uses Marker.
func NewParser(marker string) *Parser {
	if marker == "" {
		marker = Marker
	}
	return &Parser{marker: marker}
}

// Marker returns the substring this parser matches on.
func (p *Parser) Marker() string {
	return p.marker
}

// Parse returns the announced port and true if line is a readiness announcement.
// A line carrying the marker but no parseable trailing port is not a match.
func (p *Parser) Parse(line string) (uint16, bool) {
	if !strings.Contains(line, p.marker) {
		return 0, false
	}

	token := line
	if idx := strings.LastIndexByte(line, ':'); idx >= 0 {
		token = line[idx+1:]
	}

	port, err := strconv.ParseUint(strings.TrimSpace(token), 10, 16)
	if err != nil {
		return 0, false
	}
	return uint16(port), true
}

var defaultParser = NewParser(Marker)

// Parse runs the default parser against line.
func Parse(line string) (uint16, bool) {
	return defaultParser.Parse(line)
}
