// Package anchor edits text by locating a literal start/end marker pair and
// replacing the region between them, or appending a fresh anchored block when
// the pair is absent. The functions in this file work on in-memory blobs and
// never mutate their input; Patcher layers file access and backups on top.
package anchor

import (
	"strings"
)

// Outcome describes what a single patch did to a blob.
type Outcome string

const (
	// OutcomeCreated means the target did not exist and was created from the block.
	OutcomeCreated Outcome = "created"
	// OutcomeReplaced means an existing anchored region was replaced.
	OutcomeReplaced Outcome = "replaced"
	// OutcomeAppended means no anchored region existed and the block was appended.
	OutcomeAppended Outcome = "appended"
	// OutcomeSkipped means the patch was malformed and left the blob untouched.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeFailed means the patch could not be applied because of a resource error.
	OutcomeFailed Outcome = "failed"
)

// Applied reports whether the outcome counts as a successful insertion.
func (o Outcome) Applied() bool {
	switch o {
	case OutcomeCreated, OutcomeReplaced, OutcomeAppended:
		return true
	}
	return false
}

// Patch is one anchored insertion.
type Patch struct {
	StartAnchor string `json:"start_anchor" yaml:"start_anchor" mapstructure:"start_anchor"`
	EndAnchor   string `json:"end_anchor" yaml:"end_anchor" mapstructure:"end_anchor"`
	Content     string `json:"content" yaml:"content" mapstructure:"content"`
}

// Valid reports whether both anchors are non-empty.
func (p Patch) Valid() bool {
	return p.StartAnchor != "" && p.EndAnchor != ""
}

// Block renders the anchored block written for p.
func (p Patch) Block() string {
	return p.StartAnchor + "\n" + p.Content + "\n" + p.EndAnchor
}

// Span is the byte range [Start, End) of an anchored region, markers included.
type Span struct {
	Start int
	End   int
}

// Locate finds the first start marker that is followed by an end marker and
// returns the shortest span from it to the next end marker. Markers are
// matched literally.
func Locate(blob, start, end string) (Span, bool) {
	if start == "" || end == "" {
		return Span{}, false
	}
	i := strings.Index(blob, start)
	if i < 0 {
		return Span{}, false
	}
	// Any end marker after a later start marker also lies after the first
	// one, so failing here means no span exists at all.
	j := strings.Index(blob[i+len(start):], end)
	if j < 0 {
		return Span{}, false
	}
	return Span{Start: i, End: i + len(start) + j + len(end)}, true
}

// Extract returns the content of the first anchored region, without the single
// newline that Block places after the start marker and before the end marker.
func Extract(blob, start, end string) (string, bool) {
	span, ok := Locate(blob, start, end)
	if !ok {
		return "", false
	}
	inner := blob[span.Start+len(start) : span.End-len(end)]
	inner = strings.TrimPrefix(inner, "\n")
	inner = strings.TrimSuffix(inner, "\n")
	return inner, true
}

// Apply patches blob and returns the new blob. The first anchored region is
// spliced out by index so identical text elsewhere in the blob is never
// touched. Without a region the block is appended after a blank line.
func Apply(blob string, p Patch) (string, Outcome) {
	if !p.Valid() {
		return blob, OutcomeSkipped
	}
	if span, ok := Locate(blob, p.StartAnchor, p.EndAnchor); ok {
		var b strings.Builder
		b.Grow(len(blob) - (span.End - span.Start) + len(p.Content) + len(p.StartAnchor) + len(p.EndAnchor) + 2)
		b.WriteString(blob[:span.Start])
		b.WriteString(p.Block())
		b.WriteString(blob[span.End:])
		return b.String(), OutcomeReplaced
	}
	return blob + "\n\n" + p.Block(), OutcomeAppended
}

// Create returns the blob for a target that does not exist yet.
func Create(p Patch) (string, Outcome) {
	if !p.Valid() {
		return "", OutcomeSkipped
	}
	return p.Block(), OutcomeCreated
}

// ApplyBatch applies patches in order, each one observing the blob produced
// by the previous one. Malformed patches are skipped.
func ApplyBatch(blob string, patches []Patch) (string, []Outcome, int) {
	outcomes := make([]Outcome, len(patches))
	applied := 0
	for i, p := range patches {
		blob, outcomes[i] = Apply(blob, p)
		if outcomes[i].Applied() {
			applied++
		}
	}
	return blob, outcomes, applied
}

// CreateBatch builds a new blob holding one anchored block per valid patch,
// separated by blank lines.
func CreateBatch(patches []Patch) (string, []Outcome, int) {
	outcomes := make([]Outcome, len(patches))
	blocks := make([]string, 0, len(patches))
	for i, p := range patches {
		var block string
		block, outcomes[i] = Create(p)
		if outcomes[i].Applied() {
			blocks = append(blocks, block)
		}
	}
	return strings.Join(blocks, "\n\n"), outcomes, len(blocks)
}
