package selector

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/pkg/errors"

	"github.com/jingkaihe/devlet/pkg/llm/prompts"
	"github.com/jingkaihe/devlet/pkg/logger"
	"github.com/jingkaihe/devlet/pkg/store"
	"github.com/jingkaihe/devlet/pkg/utils"
)

const (
	DefaultMaxFiles = 10
	DefaultMaxBytes = 200_000
	// DefaultScanBytes is how much of each candidate the keyword scorer reads.
	DefaultScanBytes = 64 << 10
)

// Request is the input to a Selector. Candidates are relative to Root.
type Request struct {
	Root       string
	Query      string
	Candidates []string
}

// Selector chooses the context files for a query out of the candidates.
type Selector interface {
	Select(ctx context.Context, req Request) ([]string, error)
}

// KeywordSelector ranks candidates by how often the query's words occur in
// their paths and in the first ScanBytes of their contents.
type KeywordSelector struct {
	Store     store.Store
	MaxFiles  int
	ScanBytes int
}

func NewKeywordSelector(s store.Store, maxFiles int) *KeywordSelector {
	return &KeywordSelector{Store: s, MaxFiles: maxFiles}
}

type scored struct {
	path  string
	score int
}

func (k *KeywordSelector) Select(ctx context.Context, req Request) ([]string, error) {
	words := Keywords(req.Query)
	if len(words) == 0 {
		return nil, nil
	}

	scan := k.ScanBytes
	if scan <= 0 {
		scan = DefaultScanBytes
	}

	var ranked []scored
	for _, rel := range req.Candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		score := 0
		lowerPath := strings.ToLower(rel)
		for _, w := range words {
			if strings.Contains(lowerPath, w) {
				score += 3
			}
		}

		content, err := k.Store.ReadHead(ctx, filepath.Join(req.Root, filepath.FromSlash(rel)), scan)
		if err != nil {
			logger.G(ctx).WithError(err).WithField("path", rel).Debug("skipping unreadable candidate")
			continue
		}
		if !utils.IsBinary(content) {
			lowerContent := strings.ToLower(content)
			for _, w := range words {
				score += min(strings.Count(lowerContent, w), 5)
			}
		}

		if score > 0 {
			ranked = append(ranked, scored{path: rel, score: score})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].path < ranked[j].path
	})

	limit := k.MaxFiles
	if limit <= 0 {
		limit = DefaultMaxFiles
	}
	selected := make([]string, 0, min(limit, len(ranked)))
	for i := 0; i < len(ranked) && i < limit; i++ {
		selected = append(selected, ranked[i].path)
	}
	return selected, nil
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true, "this": true,
	"from": true, "into": true, "add": true, "make": true, "please": true, "can": true,
	"you": true, "are": true, "all": true, "use": true, "fix": true, "file": true,
}

// Keywords splits a query into distinct lower-cased words of three or more
// letters, dropping common filler words.
func Keywords(query string) []string {
	seen := map[string]bool{}
	var words []string
	for _, w := range strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	}) {
		if len(w) < 3 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		words = append(words, w)
	}
	return words
}

// Load reads the selected files into prompt context. Binary files are left
// out and the total content stops at maxBytes; the file crossing the limit is
// truncated.
func Load(ctx context.Context, s store.Store, root string, paths []string, maxBytes int) ([]prompts.File, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	log := logger.G(ctx)

	var files []prompts.File
	remaining := maxBytes
	for _, rel := range paths {
		if remaining <= 0 {
			log.WithField("path", rel).Debug("context budget exhausted")
			break
		}
		content, err := s.Read(ctx, filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				log.WithField("path", rel).Warn("selected file no longer exists")
				continue
			}
			return nil, err
		}
		if utils.IsBinary(content) {
			log.WithField("path", rel).Debug("skipping binary file")
			continue
		}
		content, _ = utils.Truncate(content, remaining)
		remaining -= len(content)
		files = append(files, prompts.File{Path: rel, Language: utils.DetectLanguageFromPath(rel), Content: content})
	}
	return files, nil
}
