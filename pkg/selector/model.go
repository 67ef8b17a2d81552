package selector

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/jingkaihe/devlet/pkg/llm/prompts"
	"github.com/jingkaihe/devlet/pkg/logger"
	llmtypes "github.com/jingkaihe/devlet/pkg/types/llm"
)

// ModelSelector asks the model to choose among the candidates.
type ModelSelector struct {
	Model    llmtypes.Model
	MaxFiles int
}

func NewModelSelector(model llmtypes.Model, maxFiles int) *ModelSelector {
	return &ModelSelector{Model: model, MaxFiles: maxFiles}
}

func (m *ModelSelector) Select(ctx context.Context, req Request) ([]string, error) {
	if len(req.Candidates) == 0 {
		return nil, nil
	}
	limit := m.MaxFiles
	if limit <= 0 {
		limit = DefaultMaxFiles
	}

	prompt, err := prompts.RenderSelect(prompts.SelectData{Query: req.Query, Options: req.Candidates, Limit: limit})
	if err != nil {
		return nil, err
	}
	stream := false
	resp, err := m.Model.Generate(ctx, prompt, llmtypes.GenerateOptions{Stream: &stream}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "file selection failed")
	}

	picked, err := ParseSelection(resp.Text)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(req.Candidates))
	for _, c := range req.Candidates {
		known[c] = true
	}
	var selected []string
	seen := map[string]bool{}
	for _, p := range picked {
		p = strings.TrimPrefix(strings.TrimSpace(p), "./")
		if !known[p] {
			logger.G(ctx).WithField("path", p).Debug("model selected a file outside the candidates")
			continue
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		selected = append(selected, p)
		if len(selected) == limit {
			break
		}
	}
	return selected, nil
}

// ParseSelection extracts the JSON list of paths written between the
// selection anchors.
func ParseSelection(text string) ([]string, error) {
	start := strings.Index(text, prompts.SelectStartAnchor)
	if start < 0 {
		return nil, errors.Errorf("selection reply has no %s anchor", prompts.SelectStartAnchor)
	}
	body := text[start+len(prompts.SelectStartAnchor):]
	end := strings.Index(body, prompts.SelectEndAnchor)
	if end < 0 {
		return nil, errors.Errorf("selection reply has no %s anchor", prompts.SelectEndAnchor)
	}

	var paths []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(body[:end])), &paths); err != nil {
		return nil, errors.Wrap(err, "failed to decode selection")
	}
	return paths, nil
}
