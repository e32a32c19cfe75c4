package chunker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlattenMarkdownStripsMarkup(t *testing.T) {
	src := "# Title\n\nSome *emphasized* text.\n\n- item one\n- item two\n"
	out := FlattenMarkdown(src)
	require.Contains(t, out, "Title")
	require.Contains(t, out, "emphasized")
	require.Contains(t, out, "item one")
	require.NotContains(t, out, "#")
	require.NotContains(t, out, "*")
}

func TestFlattenMarkdownKeepsCodeFenceBody(t *testing.T) {
	src := "intro\n\n```go\nfmt.Println(\"hi\")\n```\n"
	out := FlattenMarkdown(src)
	require.Contains(t, out, "fmt.Println(\"hi\")")
	require.NotContains(t, out, "```")
}

func TestFlattenMarkdownEmpty(t *testing.T) {
	require.Equal(t, "", FlattenMarkdown(""))
}
