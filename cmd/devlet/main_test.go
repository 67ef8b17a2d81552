package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/devlet/pkg/dev"
	"github.com/jingkaihe/devlet/pkg/llm"
)

func TestReadInput(t *testing.T) {
	text, err := readInput([]string{"fix", "the", "bug"}, nil, false)
	require.NoError(t, err)
	assert.Equal(t, "fix the bug", text)

	text, err = readInput(nil, strings.NewReader("from stdin"), true)
	require.NoError(t, err)
	assert.Equal(t, "from stdin", text)

	text, err = readInput([]string{"summarize"}, strings.NewReader("log line"), true)
	require.NoError(t, err)
	assert.Equal(t, "summarize\nlog line", text)
}

func TestDevConfig(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("dispatch", "always")
	v.Set("context.ignore", []string{"dist"})

	config, err := devConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "always", config.Dispatch)
	assert.Equal(t, 5*time.Minute, config.Timeout)
	assert.Equal(t, dev.DirectiveConfig{Prefix: "@/"}, config.Directive)
	assert.Equal(t, "CALL", config.Calls.Tag)
	assert.Equal(t, dev.ContextConfig{Selector: "keyword", Ignore: []string{"dist"}, MaxFiles: 10, MaxBytes: 200_000}, config.Context)
}

func TestConfigureEnv(t *testing.T) {
	t.Setenv("DEVLET_PROVIDER", "static")
	t.Setenv("DEVLET_STATIC_REPLY", "from env")
	t.Setenv("DEVLET_ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("DEVLET_OPENAI_API_KEY", "sk-openai")
	t.Setenv("DEVLET_OPENAI_BASE_URL", "http://localhost:11434/v1")
	t.Setenv("DEVLET_GOOGLE_API_KEY", "g-key")
	t.Setenv("DEVLET_RETRY_ATTEMPTS", "5")
	t.Setenv("DEVLET_DISPATCH", "never")

	v := viper.New()
	configureEnv(v)
	setDefaults(v)

	config, err := llm.GetConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "static", config.Provider)
	assert.Equal(t, "from env", config.Static.Reply)
	assert.Equal(t, "sk-ant", config.Anthropic.APIKey)
	assert.Equal(t, "sk-openai", config.OpenAI.APIKey)
	assert.Equal(t, "http://localhost:11434/v1", config.OpenAI.BaseURL)
	assert.Equal(t, "g-key", config.Google.APIKey)
	assert.Equal(t, 5, config.Retry.Attempts)

	devCfg, err := devConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "never", devCfg.Dispatch)
}

func TestNewState(t *testing.T) {
	dir := t.TempDir()
	v := viper.New()
	setDefaults(v)

	state, err := newState(v, dir)
	require.NoError(t, err)
	assert.True(t, state.Backup())
	assert.False(t, state.CreateIfMissing())

	abs, err := state.Store().Abs("a.go")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.go"), abs)

	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = newState(v, file)
	assert.Error(t, err)

	_, err = newState(v, filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestInsertContent(t *testing.T) {
	content, err := insertContent(&InsertOptions{content: "inline"})
	require.NoError(t, err)
	assert.Equal(t, "inline", content)

	file := filepath.Join(t.TempDir(), "body.txt")
	require.NoError(t, os.WriteFile(file, []byte("from file"), 0o644))
	content, err = insertContent(&InsertOptions{contentFile: file})
	require.NoError(t, err)
	assert.Equal(t, "from file", content)

	_, err = insertContent(&InsertOptions{content: "x", contentFile: file})
	assert.Error(t, err)
}

func TestParseCommand(t *testing.T) {
	file := filepath.Join(t.TempDir(), "reply.txt")
	require.NoError(t, os.WriteFile(file, []byte("ok <CALL::ls><path>src</path></CALL::ls> <CALL::x>open"), 0o644))

	var out bytes.Buffer
	parseCmd.SetOut(&out)
	parseCmd.SetContext(context.Background())
	require.NoError(t, parseCmd.RunE(parseCmd, []string{file}))

	assert.Contains(t, out.String(), `"operation": "ls"`)
	assert.Contains(t, out.String(), `"path": "src"`)
	assert.NotContains(t, out.String(), `"x"`)
}

func TestToolsCommand(t *testing.T) {
	var out bytes.Buffer
	toolsCmd.SetOut(&out)
	require.NoError(t, toolsCmd.RunE(toolsCmd, nil))

	assert.Contains(t, out.String(), "insert ")
	assert.Contains(t, out.String(), "@/file_read file_path")
}
