package dyncc

import (
	"bufio"
	"bytes"
	"regexp"
	"strconv"
	"strings"
)

// Severity of a Diagnostic.
type Severity uint8

const (
	SevInfo Severity = iota
	SevWarning
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevInfo:
		return "info"
	case SevWarning:
		return "warning"
	case SevError:
		return "error"
	}
	return "unknown"
}

// Diagnostic is one message reported by the toolchain.
type Diagnostic struct {
	Severity Severity
	Code     string // optional, the go compiler reports none
	Source   string
	Line     int
	Column   int
	Message  string
}

func (d Diagnostic) String() string {
	var b strings.Builder
	if d.Source != "" {
		b.WriteString(d.Source)
		if d.Line > 0 {
			b.WriteByte(':')
			b.WriteString(strconv.Itoa(d.Line))
			if d.Column > 0 {
				b.WriteByte(':')
				b.WriteString(strconv.Itoa(d.Column))
			}
		}
		b.WriteString(": ")
	}
	if d.Code != "" {
		b.WriteByte('[')
		b.WriteString(d.Code)
		b.WriteString("] ")
	}
	b.WriteString(d.Message)
	return b.String()
}

// Collector accumulates the diagnostics of one compile attempt.
// A Collector belongs to a single call and is never shared.
type Collector struct {
	items []Diagnostic
}

func NewCollector() *Collector {
	return new(Collector)
}

func (c *Collector) Report(d Diagnostic) {
	c.items = append(c.items, d)
}

// Diagnostics in report order. The slice must not be modified.
func (c *Collector) Diagnostics() []Diagnostic {
	return c.items
}

func (c *Collector) Len() int {
	return len(c.items)
}

func (c *Collector) HasErrors() bool {
	for i := range c.items {
		if c.items[i].Severity >= SevError {
			return true
		}
	}
	return false
}

// Separator surrounds and delimits rendered diagnostics.
const Separator = "------"

// Render the header line followed by every diagnostic, each one enclosed by Separator lines.
func Render(header string, ds []Diagnostic) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteByte('\n')
	b.WriteString(Separator)
	b.WriteByte('\n')
	for i, d := range ds {
		if i > 0 {
			b.WriteByte('\n')
			b.WriteString(Separator)
			b.WriteByte('\n')
		}
		b.WriteString(d.String())
	}
	b.WriteByte('\n')
	b.WriteString(Separator)
	b.WriteByte('\n')
	return b.String()
}

var diagLine = regexp.MustCompile(`^(.+?):(\d+)(?::(\d+))?: (.*)$`)

// ParseDiagnostics reads go compiler output into c.
//
// Lines shaped as file:line[:col]: message become located errors,
// tab indented lines continue the previous message
// and anything else is reported without location.
func ParseDiagnostics(out []byte, c *Collector) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(line, "\t") && c.Len() > 0 {
			last := &c.items[len(c.items)-1]
			last.Message += "\n" + line
			continue
		}
		if m := diagLine.FindStringSubmatch(line); m != nil {
			d := Diagnostic{Severity: SevError, Source: m[1], Message: m[4]}
			d.Line, _ = strconv.Atoi(m[2])
			if m[3] != "" {
				d.Column, _ = strconv.Atoi(m[3])
			}
			c.Report(d)
			continue
		}
		c.Report(Diagnostic{Severity: SevError, Message: line})
	}
}
