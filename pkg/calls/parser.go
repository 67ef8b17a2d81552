// Package calls extracts tagged invocations from model output.
//
// An invocation looks like <CALL::name>body</CALL::name> and may appear
// anywhere in surrounding prose. The body either carries named parameters as
// nested <key>value</key> elements or is taken whole as the "value" parameter.
package calls

import (
	"strings"
)

// DefaultTag is the tag word used in <CALL::name> blocks.
const DefaultTag = "CALL"

// ValueKey is the parameter that holds a body without nested parameters.
const ValueKey = "value"

// Record is one parsed invocation.
type Record struct {
	// Operation is the name as written in the opening tag.
	Operation string `json:"operation"`
	// Parameters are keyed by lower-cased parameter name.
	Parameters map[string]string `json:"parameters"`
	// Offset is the byte offset of the opening tag in the parsed text.
	Offset int `json:"offset"`
	// Raw is the full matched block, tags included.
	Raw string `json:"-"`
}

// Param returns a parameter, matching the key case-insensitively.
func (r Record) Param(key string) (string, bool) {
	v, ok := r.Parameters[strings.ToLower(key)]
	return v, ok
}

// Is reports whether the record names operation, ignoring case.
func (r Record) Is(operation string) bool {
	return strings.EqualFold(r.Operation, operation)
}

// Span is an opening tag that never found its closing tag.
type Span struct {
	Operation string
	Offset    int
}

// Result is what Parser.Parse found.
type Result struct {
	Records []Record
	// Unterminated lists opening tags that were ignored.
	Unterminated []Span
}

// Parser scans text for tagged invocations. The zero value uses DefaultTag.
type Parser struct {
	Tag string
}

// NewParser returns a parser for <tag::name> blocks. An empty tag means DefaultTag.
func NewParser(tag string) *Parser {
	if tag == "" {
		tag = DefaultTag
	}
	return &Parser{Tag: tag}
}

func (p *Parser) tag() string {
	if p == nil || p.Tag == "" {
		return DefaultTag
	}
	return p.Tag
}

// Parse returns the invocation records in text, in order of appearance.
func (p *Parser) Parse(text string) []Record {
	return p.ParseDetailed(text).Records
}

// ParseDetailed is Parse that also reports the unterminated opening tags it
// skipped. It never fails.
func (p *Parser) ParseDetailed(text string) Result {
	var (
		res  Result
		open = "<" + p.tag() + "::"
		pos  = 0
	)
	for pos < len(text) {
		i := strings.Index(text[pos:], open)
		if i < 0 {
			break
		}
		start := pos + i
		nameStart := start + len(open)

		name, nameEnd, ok := readName(text, nameStart)
		if !ok {
			pos = start + 1
			continue
		}

		closing := "</" + p.tag() + "::" + name + ">"
		bodyStart := nameEnd + 1
		j := strings.Index(text[bodyStart:], closing)
		if j < 0 {
			res.Unterminated = append(res.Unterminated, Span{Operation: name, Offset: start})
			pos = start + 1
			continue
		}
		bodyEnd := bodyStart + j
		end := bodyEnd + len(closing)

		res.Records = append(res.Records, Record{
			Operation:  name,
			Parameters: parseParams(text[bodyStart:bodyEnd]),
			Offset:     start,
			Raw:        text[start:end],
		})
		pos = end
	}
	return res
}

// Parse runs a DefaultTag parser over text.
func Parse(text string) []Record {
	return (&Parser{}).Parse(text)
}

// readName reads an operation or parameter name starting at from, up to the
// next '>'. It returns the index of that '>'.
func readName(text string, from int) (string, int, bool) {
	k := strings.IndexByte(text[from:], '>')
	if k <= 0 {
		return "", 0, false
	}
	name := text[from : from+k]
	if strings.ContainsAny(name, "</") {
		return "", 0, false
	}
	return name, from + k, true
}

func parseParams(body string) map[string]string {
	params := map[string]string{}
	pos := 0
	for pos < len(body) {
		i := strings.IndexByte(body[pos:], '<')
		if i < 0 {
			break
		}
		start := pos + i
		key, keyEnd, ok := readName(body, start+1)
		if !ok {
			pos = start + 1
			continue
		}
		closing := "</" + key + ">"
		valueStart := keyEnd + 1
		j := strings.Index(body[valueStart:], closing)
		if j < 0 {
			pos = start + 1
			continue
		}
		params[strings.ToLower(key)] = strings.TrimSpace(body[valueStart : valueStart+j])
		pos = valueStart + j + len(closing)
	}
	if len(params) == 0 {
		params[ValueKey] = strings.TrimSpace(body)
	}
	return params
}
