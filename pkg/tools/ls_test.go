package tools

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tooltypes "github.com/jingkaihe/devlet/pkg/types/tools"
)

func TestListTool(t *testing.T) {
	state, _ := newTestState(t, map[string]string{
		"/repo/go.mod":          "module x\n",
		"/repo/pkg/a/a.go":      "package a\n",
		"/repo/pkg/a/a_test.go": "package a\n",
		"/repo/pkg/b/b.go":      "package b\n",
	})
	tool := &ListTool{}
	ctx := context.Background()

	res := tool.Execute(ctx, state, tooltypes.Params{})
	require.False(t, res.IsError(), res.Error)
	assert.Equal(t, "go.mod\npkg/", res.Result)

	res = tool.Execute(ctx, state, tooltypes.Params{"path": "pkg", "pattern": "**/*.go"})
	require.False(t, res.IsError(), res.Error)
	assert.Equal(t, "a/a.go\na/a_test.go\nb/b.go", res.Result)

	res = tool.Execute(ctx, state, tooltypes.Params{"path": "nowhere"})
	assert.True(t, res.IsError())
}

func TestListTool_Limit(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < maxListEntries+5; i++ {
		files[fmt.Sprintf("/repo/f%04d", i)] = "x"
	}
	state, _ := newTestState(t, files)

	res := (&ListTool{}).Execute(context.Background(), state, tooltypes.Params{})
	require.False(t, res.IsError(), res.Error)
	lines := strings.Split(res.Result, "\n")
	assert.Len(t, lines, maxListEntries+1)
	assert.Equal(t, "... and 5 more", lines[len(lines)-1])
}

func TestListTool_Validate(t *testing.T) {
	state, _ := newTestState(t, nil)
	assert.NoError(t, (&ListTool{}).ValidateInput(state, tooltypes.Params{"pattern": "**/*.go"}))
	assert.Error(t, (&ListTool{}).ValidateInput(state, tooltypes.Params{"pattern": "[a"}))
}
