package api

import (
	"strings"

	"github.com/jingkaihe/enginelog/internal/errx"
)

// Severity is the criticality level of a log event.
type Severity string

const (
	SeverityDebug   Severity = "DEBUG"
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// Severities lists the valid levels in ascending order.
var Severities = []Severity{SeverityDebug, SeverityInfo, SeverityWarning, SeverityError}

// Valid reports whether s is one of the four defined levels. The match is
// exact; the wire form does not accept aliases or other casing.
func (s Severity) Valid() bool {
	return s.Rank() >= 0
}

// Rank orders severities DEBUG < INFO < WARNING < ERROR. Invalid values
// rank -1.
func (s Severity) Rank() int {
	switch s {
	case SeverityDebug:
		return 0
	case SeverityInfo:
		return 1
	case SeverityWarning:
		return 2
	case SeverityError:
		return 3
	default:
		return -1
	}
}

func (s Severity) String() string { return string(s) }

// ParseSeverity parses a user supplied level name, case-insensitively.
// "warn" is accepted as an alias of WARNING for command line use.
func ParseSeverity(name string) (Severity, error) {
	s := Severity(strings.ToUpper(strings.TrimSpace(name)))
	if s == "WARN" {
		s = SeverityWarning
	}
	if !s.Valid() {
		return "", errx.With(ErrInvalidArgument, ": unknown severity %q", name)
	}
	return s, nil
}
