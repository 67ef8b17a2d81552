// Package directive expands inline invocations embedded in free-form text.
//
// A whitespace-delimited token made of the prefix (default "@/") followed by a
// name starts a directive; the tokens after it, up to the next directive
// marker, are its candidate arguments. Expansion runs each directive through
// an operation table and splices " --> <result>" into the text right after
// the arguments the operation consumed. The directive itself stays in the
// text.
package directive

import (
	"strings"
	"unicode"
)

// DefaultPrefix marks a token as a directive.
const DefaultPrefix = "@/"

// Arrow separates a directive from its spliced result.
const Arrow = "-->"

// Token is a whitespace-delimited word and the byte offset it starts at.
type Token struct {
	Text   string
	Offset int
	Index  int
}

// End returns the byte offset just past the token.
func (t Token) End() int {
	return t.Offset + len(t.Text)
}

// Segment is either a Literal or a *Directive.
type Segment interface {
	segment()
}

// Literal is a token that is not part of any directive.
type Literal struct {
	Token
}

// Directive is an inline invocation found in the text.
type Directive struct {
	// Operation is the normalised operation name, always with a leading "/".
	Operation string
	// Marker is the token that started the directive, as written.
	Marker Token
	// Args are the positional arguments passed to the operation.
	Args []string
	// SourceIndex is the token index of Marker.
	SourceIndex int
	// Result is the stringified operation result once expanded.
	Result string
	// Skipped is set when the operation was unknown and skipping was enabled.
	Skipped bool

	argTokens []Token
}

func (Literal) segment()    {}
func (*Directive) segment() {}

// Tokenize splits text on Unicode whitespace, keeping byte offsets.
func Tokenize(text string) []Token {
	var tokens []Token
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = append(tokens, Token{Text: text[start:i], Offset: start, Index: len(tokens)})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, Token{Text: text[start:], Offset: start, Index: len(tokens)})
	}
	return tokens
}

// NormalizeName ensures the operation name starts with "/".
func NormalizeName(name string) string {
	if strings.HasPrefix(name, "/") {
		return name
	}
	return "/" + name
}

// Scan tokenizes text into literals and directives using prefix. Every token
// between a directive marker and the next marker (or the end of the text)
// becomes a candidate argument of that directive.
func Scan(text, prefix string) []Segment {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	var (
		segments []Segment
		current  *Directive
	)
	for _, tok := range Tokenize(text) {
		if name, ok := markerName(tok.Text, prefix); ok {
			current = &Directive{
				Operation:   NormalizeName(name),
				Marker:      tok,
				SourceIndex: tok.Index,
			}
			segments = append(segments, current)
			continue
		}
		if current != nil {
			current.argTokens = append(current.argTokens, tok)
			current.Args = append(current.Args, tok.Text)
			continue
		}
		segments = append(segments, Literal{Token: tok})
	}
	return segments
}

// Directives returns only the directive segments of Scan, in order.
func Directives(text, prefix string) []*Directive {
	var out []*Directive
	for _, seg := range Scan(text, prefix) {
		if d, ok := seg.(*Directive); ok {
			out = append(out, d)
		}
	}
	return out
}

func markerName(token, prefix string) (string, bool) {
	if !strings.HasPrefix(token, prefix) || len(token) == len(prefix) {
		return "", false
	}
	return token[len(prefix):], true
}

// bind trims the candidate arguments to what an operation of the given arity
// consumes and returns the byte offset the result is spliced at.
func (d *Directive) bind(arity int) int {
	if arity >= 0 && arity < len(d.argTokens) {
		d.argTokens = d.argTokens[:arity]
		d.Args = d.Args[:arity]
	}
	if len(d.argTokens) == 0 {
		return d.Marker.End()
	}
	return d.argTokens[len(d.argTokens)-1].End()
}
