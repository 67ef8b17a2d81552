package directive

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/jingkaihe/devlet/pkg/logger"
)

// Expansion is the outcome of Scanner.Expand.
type Expansion struct {
	// Text is the input with every resolved directive followed by " --> result".
	Text string
	// Directives lists every directive found, in order of appearance.
	Directives []*Directive
}

// Scanner expands directives in text.
type Scanner struct {
	prefix      string
	skipUnknown bool
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithPrefix changes the marker prefix. An empty prefix keeps DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(s *Scanner) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithSkipUnknown leaves directives naming unregistered operations untouched
// instead of failing the expansion.
func WithSkipUnknown(skip bool) Option {
	return func(s *Scanner) {
		s.skipUnknown = skip
	}
}

// NewScanner creates a Scanner.
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Prefix returns the marker prefix in use.
func (s *Scanner) Prefix() string {
	return s.prefix
}

// Scan tokenizes text with the scanner's prefix.
func (s *Scanner) Scan(text string) []Segment {
	return Scan(text, s.prefix)
}

// Expand resolves every directive in text against table, left to right, and
// splices each result into the text after the arguments the operation took.
// Results are spliced only after all directives ran, so no directive observes
// another one's output.
func (s *Scanner) Expand(ctx context.Context, text string, table Table) (*Expansion, error) {
	type splice struct {
		at   int
		text string
	}

	var (
		directives []*Directive
		splices    []splice
	)
	for _, seg := range s.Scan(text) {
		d, ok := seg.(*Directive)
		if !ok {
			continue
		}
		directives = append(directives, d)

		op, ok := table.Lookup(d.Operation)
		if !ok {
			if s.skipUnknown {
				d.Skipped = true
				logger.G(ctx).WithField("token", d.Marker.Text).Warn("skipping directive with unknown operation")
				continue
			}
			return nil, &UnknownOperationError{Operation: d.Operation, Token: d.Marker.Text, Index: d.SourceIndex}
		}

		at := d.bind(op.Arity())
		logger.G(ctx).WithField("operation", d.Operation).WithField("args", d.Args).Debug("running directive")

		result, err := op.Call(ctx, d.Args)
		if err != nil {
			return nil, errors.Wrapf(err, "directive %s failed", d.Operation)
		}
		d.Result = result
		splices = append(splices, splice{at: at, text: " " + Arrow + " " + result})
	}

	var b strings.Builder
	last := 0
	for _, sp := range splices {
		b.WriteString(text[last:sp.at])
		b.WriteString(sp.text)
		last = sp.at
	}
	b.WriteString(text[last:])

	return &Expansion{Text: b.String(), Directives: directives}, nil
}
