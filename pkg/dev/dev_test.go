package dev

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/devlet/pkg/anchor"
	"github.com/jingkaihe/devlet/pkg/calls"
	"github.com/jingkaihe/devlet/pkg/directive"
	"github.com/jingkaihe/devlet/pkg/llm/static"
	"github.com/jingkaihe/devlet/pkg/store"
	"github.com/jingkaihe/devlet/pkg/tools"
	llmtypes "github.com/jingkaihe/devlet/pkg/types/llm"
)

const insertReply = `I will update the handler.
<CALL::insert>
<file_path>server.go</file_path>
<start_anchor>// BEGIN handler</start_anchor>
<end_anchor>// END handler</end_anchor>
<content>func handle() error { return nil }</content>
</CALL::insert>`

func newTestDev(t *testing.T, model *static.Model, files map[string]string, config Config) (*Dev, *store.FS) {
	t.Helper()
	s := store.NewMemory(store.WithBaseDir("/repo"))
	for name, content := range files {
		require.NoError(t, s.Write(context.Background(), "/repo/"+name, content))
	}
	d, err := New(model, WithState(tools.NewBasicState(tools.WithStore(s))), WithConfig(config))
	require.NoError(t, err)
	return d, s
}

func serverFiles() map[string]string {
	return map[string]string{
		"server.go": "package main\n\n// BEGIN handler\nfunc handle() {}\n// END handler\n",
		"notes.txt": "one\ntwo\n",
	}
}

func read(t *testing.T, s store.Store, path string) string {
	t.Helper()
	content, err := s.Read(context.Background(), path)
	require.NoError(t, err)
	return content
}

func TestForward_DispatchAlways(t *testing.T) {
	model := &static.Model{Reply: insertReply}
	d, s := newTestDev(t, model, serverFiles(), Config{Dispatch: "always"})

	result, err := d.Forward(context.Background(), Request{Query: "change the handler in server"})
	require.NoError(t, err)
	require.NoError(t, result.Err)

	assert.NotEmpty(t, result.RequestID)
	assert.Equal(t, insertReply, result.Reply)
	require.Len(t, result.Calls, 1)
	assert.Equal(t, "insert", result.Calls[0].Operation)
	require.Len(t, result.Dispatched, 1)
	assert.True(t, result.Dispatched[0].Succeeded())
	assert.Equal(t, "insert", result.Dispatched[0].Tool)

	region, ok := anchor.Extract(read(t, s, "/repo/server.go"), "// BEGIN handler", "// END handler")
	require.True(t, ok)
	assert.Equal(t, "func handle() error { return nil }", region)
	assert.Equal(t, "package main\n\n// BEGIN handler\nfunc handle() {}\n// END handler\n", read(t, s, "/repo/server.go.bak"))
}

func TestForward_Prompt(t *testing.T) {
	model := &static.Model{}
	d, _ := newTestDev(t, model, serverFiles(), Config{})

	result, err := d.Forward(context.Background(), Request{Query: "rename the handler"})
	require.NoError(t, err)

	assert.Equal(t, []string{"server.go"}, result.ContextFiles)
	require.Len(t, model.Prompts(), 1)
	prompt := model.Prompts()[0]
	assert.Equal(t, result.Prompt, prompt)
	assert.Contains(t, prompt, "PWD=/repo")
	assert.Contains(t, prompt, `<file path="server.go" language="go">`)
	assert.NotContains(t, prompt, `<file path="notes.txt"`)
	assert.Contains(t, prompt, "QUERY=rename the handler")
	assert.Contains(t, prompt, "<CALL::tool_name>")
	for _, name := range []string{"insert", "insert_multiple", "extract", "file_read", "file_write", "ls"} {
		assert.Contains(t, prompt, "- "+name+": ")
	}
	assert.Empty(t, result.Calls)
	assert.Nil(t, result.Dispatched)
}

func TestForward_ExplicitContextFiles(t *testing.T) {
	model := &static.Model{}
	d, _ := newTestDev(t, model, serverFiles(), Config{})

	result, err := d.Forward(context.Background(), Request{Query: "rename the handler", ContextFiles: []string{"notes.txt"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"notes.txt"}, result.ContextFiles)
	assert.Contains(t, result.Prompt, "<file path=\"notes.txt\" language=\"text\">\none\ntwo\n\n</file>")
}

func TestForward_ExpandsDirectives(t *testing.T) {
	model := &static.Model{}
	d, _ := newTestDev(t, model, serverFiles(), Config{})

	result, err := d.Forward(context.Background(), Request{Query: "summarize @/read notes.txt briefly"})
	require.NoError(t, err)

	assert.Equal(t, "summarize @/read notes.txt --> 1: one\n2: two briefly", result.Query)
	require.Len(t, result.Expansion.Directives, 1)
	assert.Contains(t, model.Prompts()[0], "QUERY=summarize @/read notes.txt --> 1: one")
}

func TestForward_UnknownDirectiveStops(t *testing.T) {
	model := &static.Model{}
	d, _ := newTestDev(t, model, serverFiles(), Config{})

	_, err := d.Forward(context.Background(), Request{Query: "run @/nope x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, directive.ErrUnknownOperation))
	assert.Empty(t, model.Prompts(), "the model is not called")
}

func TestForward_SkipUnknownDirective(t *testing.T) {
	model := &static.Model{}
	d, _ := newTestDev(t, model, serverFiles(), Config{Directive: DirectiveConfig{SkipUnknown: true}})

	result, err := d.Forward(context.Background(), Request{Query: "run @/nope x"})
	require.NoError(t, err)
	assert.Equal(t, "run @/nope x", result.Query)
}

func TestForward_ConfirmDeclined(t *testing.T) {
	model := &static.Model{Reply: insertReply}
	d, s := newTestDev(t, model, serverFiles(), Config{})

	var asked []calls.Record
	result, err := d.Forward(context.Background(), Request{
		Query: "change the handler",
		Confirm: func(_ context.Context, records []calls.Record) (bool, error) {
			asked = records
			return false, nil
		},
	})
	require.NoError(t, err)

	assert.Len(t, asked, 1)
	require.Len(t, result.Dispatched, 1)
	assert.ErrorIs(t, result.Dispatched[0].Err, ErrDeclined)
	assert.Error(t, result.Err)
	assert.Contains(t, read(t, s, "/repo/server.go"), "func handle() {}")
}

func TestForward_ConfirmAccepted(t *testing.T) {
	model := &static.Model{Reply: insertReply}
	d, s := newTestDev(t, model, serverFiles(), Config{Dispatch: "confirm"})

	result, err := d.Forward(context.Background(), Request{
		Query:   "change the handler",
		Confirm: func(context.Context, []calls.Record) (bool, error) { return true, nil },
	})
	require.NoError(t, err)
	require.NoError(t, result.Err)
	assert.Contains(t, read(t, s, "/repo/server.go"), "func handle() error")
}

func TestForward_ConfirmWithoutCallback(t *testing.T) {
	model := &static.Model{Reply: insertReply}
	d, s := newTestDev(t, model, serverFiles(), Config{})

	result, err := d.Forward(context.Background(), Request{Query: "x"})
	require.NoError(t, err)
	assert.Len(t, result.Calls, 1)
	assert.Nil(t, result.Dispatched)
	assert.Contains(t, read(t, s, "/repo/server.go"), "func handle() {}")
}

func TestForward_DispatchNeverOverride(t *testing.T) {
	model := &static.Model{Reply: insertReply}
	d, s := newTestDev(t, model, serverFiles(), Config{Dispatch: "always"})

	result, err := d.Forward(context.Background(), Request{Query: "x", Dispatch: DispatchNever})
	require.NoError(t, err)
	assert.Nil(t, result.Dispatched)
	assert.Contains(t, read(t, s, "/repo/server.go"), "func handle() {}")
}

func TestForward_UnknownAndFailingCalls(t *testing.T) {
	reply := strings.Join([]string{
		"<CALL::deploy>prod</CALL::deploy>",
		"<CALL::READ>notes.txt</CALL::READ>",
		"<CALL::read>missing.txt</CALL::read>",
		"<CALL::broken>never closed",
	}, "\n")
	model := &static.Model{Reply: reply}
	d, _ := newTestDev(t, model, serverFiles(), Config{Dispatch: "always"})

	result, err := d.Forward(context.Background(), Request{Query: "x"})
	require.NoError(t, err)

	require.Len(t, result.Dispatched, 3)
	assert.True(t, errors.Is(result.Dispatched[0].Err, directive.ErrUnknownOperation))
	assert.True(t, result.Dispatched[1].Succeeded(), "names resolve case-insensitively")
	assert.Equal(t, "file_read", result.Dispatched[1].Tool)
	assert.Equal(t, "1: one\n2: two", result.Dispatched[1].Result.Result)
	assert.True(t, result.Dispatched[2].Result.IsError())

	require.Len(t, result.Unterminated, 1)
	assert.Equal(t, "broken", result.Unterminated[0].Operation)

	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "2 errors occurred")
}

func TestForward_ModelError(t *testing.T) {
	model := &static.Model{Respond: func(string) (string, error) { return "", errors.New("overloaded") }}
	d, _ := newTestDev(t, model, serverFiles(), Config{})

	_, err := d.Forward(context.Background(), Request{Query: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, llmtypes.ErrBackend))
}

func TestForward_StreamsToHandler(t *testing.T) {
	model := &static.Model{Reply: "line one\nline two\n", Stream: true}
	d, _ := newTestDev(t, model, serverFiles(), Config{})

	handler := &llmtypes.StringCollectorHandler{}
	result, err := d.Forward(context.Background(), Request{Query: "x", Handler: handler})
	require.NoError(t, err)
	assert.Equal(t, result.Reply, handler.CollectedText())
	assert.True(t, handler.Done())
}

func TestForward_CustomTag(t *testing.T) {
	model := &static.Model{Reply: "<FN::ls>.</FN::ls><CALL::ls>.</CALL::ls>"}
	d, _ := newTestDev(t, model, serverFiles(), Config{Calls: CallsConfig{Tag: "FN"}})

	result, err := d.Forward(context.Background(), Request{Query: "x", Dispatch: DispatchNever})
	require.NoError(t, err)
	require.Len(t, result.Calls, 1)
	assert.Contains(t, result.Prompt, "<FN::tool_name>")
}

func TestNew(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(&static.Model{}, WithConfig(Config{Dispatch: "sometimes"}))
	assert.Error(t, err)

	_, err = New(&static.Model{}, WithConfig(Config{Context: ContextConfig{Selector: "magic"}}))
	assert.Error(t, err)

	d, err := New(&static.Model{}, WithConfig(Config{Context: ContextConfig{Selector: "model"}}))
	require.NoError(t, err)
	assert.NotNil(t, d.Registry())
}

func TestParseDispatchMode(t *testing.T) {
	tests := []struct {
		in       string
		expected DispatchMode
		wantErr  bool
	}{
		{"", DispatchConfirm, false},
		{"never", DispatchNever, false},
		{" Always ", DispatchAlways, false},
		{"CONFIRM", DispatchConfirm, false},
		{"maybe", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			mode, err := ParseDispatchMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, mode)
		})
	}
}
