package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderRequest(t *testing.T) {
	t.Run("contains required sections", func(t *testing.T) {
		prompt, err := RenderRequest(RequestData{
			PWD:   "/repo",
			Files: []File{{Path: "main.go", Content: "package main"}},
			Query: "add a flag",
			Tools: []Tool{{Name: "insert", Description: "Insert between anchors", Schema: `{"type":"object"}`}},
		})
		require.NoError(t, err)

		for _, section := range []string{"--GOAL--", "--CONTEXT--", "--TOOLS--"} {
			assert.Contains(t, prompt, section)
		}
		assert.Contains(t, prompt, "PWD=/repo")
		assert.Contains(t, prompt, "<file path=\"main.go\">\npackage main\n</file>")
		assert.Contains(t, prompt, "QUERY=add a flag")
		assert.Contains(t, prompt, "- insert: Insert between anchors")
		assert.Contains(t, prompt, `schema: {"type":"object"}`)
	})

	t.Run("sections are ordered", func(t *testing.T) {
		prompt, err := RenderRequest(RequestData{PWD: "/x", Query: "q"})
		require.NoError(t, err)
		goal := strings.Index(prompt, "--GOAL--")
		ctx := strings.Index(prompt, "--CONTEXT--")
		tools := strings.Index(prompt, "--TOOLS--")
		assert.Less(t, goal, ctx)
		assert.Less(t, ctx, tools)
		assert.Contains(t, prompt, "CONTEXT=(no files selected)")
	})

	t.Run("file language", func(t *testing.T) {
		prompt, err := RenderRequest(RequestData{Files: []File{{Path: "a.py", Language: "python", Content: "pass"}}})
		require.NoError(t, err)
		assert.Contains(t, prompt, `<file path="a.py" language="python">`)
	})

	t.Run("tag word", func(t *testing.T) {
		prompt, err := RenderRequest(RequestData{Tag: "FN"})
		require.NoError(t, err)
		assert.Contains(t, prompt, "<FN::tool_name>")
		assert.NotContains(t, prompt, "CALL::")

		prompt, err = RenderRequest(RequestData{})
		require.NoError(t, err)
		assert.Contains(t, prompt, "<CALL::tool_name>")
	})

	t.Run("file content is not escaped", func(t *testing.T) {
		prompt, err := RenderRequest(RequestData{Files: []File{{Path: "a.html", Content: "<b>&</b>"}}})
		require.NoError(t, err)
		assert.Contains(t, prompt, "<b>&</b>")
	})
}

func TestRenderSelect(t *testing.T) {
	prompt, err := RenderSelect(SelectData{Query: "fix login", Options: []string{"auth.go", "main.go"}, Limit: 3})
	require.NoError(t, err)

	assert.Contains(t, prompt, "at most 3 files")
	assert.Contains(t, prompt, "QUERY=fix login")
	assert.Contains(t, prompt, "- auth.go\n- main.go")
	assert.Contains(t, prompt, SelectStartAnchor)
	assert.Contains(t, prompt, SelectEndAnchor)
}
