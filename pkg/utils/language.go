package utils

import (
	"path/filepath"
	"strings"
)

var languages = map[string][]string{
	"go":         {"go"},
	"python":     {"py", "pyi"},
	"javascript": {"js", "jsx", "mjs", "cjs"},
	"typescript": {"ts", "tsx"},
	"java":       {"java"},
	"kotlin":     {"kt", "kts"},
	"c":          {"c", "h"},
	"cpp":        {"cpp", "cc", "cxx", "hpp"},
	"rust":       {"rs"},
	"ruby":       {"rb"},
	"php":        {"php"},
	"bash":       {"sh", "bash"},
	"shell":      {"zsh", "fish"},
	"yaml":       {"yaml", "yml"},
	"json":       {"json"},
	"toml":       {"toml"},
	"xml":        {"xml"},
	"html":       {"html", "htm"},
	"css":        {"css", "scss"},
	"markdown":   {"md", "markdown"},
	"text":       {"txt"},
	"sql":        {"sql"},
	"lua":        {"lua"},
	"swift":      {"swift"},
	"elixir":     {"ex", "exs"},
	"vue":        {"vue"},
	"svelte":     {"svelte"},
}

var extensionToLanguage = func() map[string]string {
	m := make(map[string]string)
	for lang, exts := range languages {
		for _, ext := range exts {
			m[ext] = lang
		}
	}
	return m
}()

// DetectLanguageFromPath maps a file extension to a code fence language.
// It returns "" when the extension is unknown.
func DetectLanguageFromPath(filePath string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filePath), "."))
	return extensionToLanguage[ext]
}
