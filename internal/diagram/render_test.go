package diagram

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowreader/pkg/schema"
)

func TestRenderMermaid(t *testing.T) {
	output := RenderMermaid(approval(t), nil)

	assert.True(t, strings.HasPrefix(output, "graph TD\n"))
	assert.Contains(t, output, "%% approval")
	assert.Contains(t, output, `start(("start"))`)
	assert.Contains(t, output, `review["Review"]`)
	assert.Contains(t, output, `reject[["Reject"]]`)
	assert.Contains(t, output, `split{"split"}`)
	assert.Contains(t, output, "split -->|${ok}| approve")
	assert.Contains(t, output, "split -.->|default| reject")
	assert.Contains(t, output, "review --> split")
	assert.NotContains(t, output, "class archive last")
}

func TestRenderMermaid_Annotated(t *testing.T) {
	output := RenderMermaid(approval(t), approvalTasks())

	assert.Contains(t, output, `approve["Approve #2 if ${ok}"]`)
	assert.Contains(t, output, `archive["Archive #3 [LAST]"]`)
	assert.Contains(t, output, "class archive last")
}

func TestRenderMermaid_Escaping(t *testing.T) {
	d, err := NewBuilder("").
		Start("s").
		Task("a.1", `Say "hi"`).
		Diverging("g").
		Task("b", "B").
		End("e").
		AddNode(Node{ID: "sub", Name: "Sub", Kind: NodeKindUnsupported, Element: "subProcess"}).
		Flow("s", "a.1").
		Flow("a.1", "g").
		Conditional("g", "b", "x || y").
		Flow("g", "sub").
		Flow("b", "e").
		Build()
	require.NoError(t, err)

	output := RenderMermaid(d, nil)
	assert.NotContains(t, output, "%%")
	assert.Contains(t, output, `a_1["Say #quot;hi#quot;"]`)
	assert.Contains(t, output, "g -->|x #124;#124; y| b")
	assert.Contains(t, output, `sub>"Sub (subProcess)"]`)
	assert.Contains(t, output, "class sub unsupported")
}

func TestRenderASCII(t *testing.T) {
	output := RenderASCII(approval(t), approvalTasks())
	lines := strings.Split(output, "\n")

	assert.Equal(t, "=== approval ===", lines[0])
	assert.Contains(t, output, "│ Review │")
	assert.Contains(t, output, "│ #1     │")
	assert.Contains(t, output, "│ [LAST]  │")
	assert.Contains(t, output, "│ if default │")

	// Approve and Reject share a row.
	var row string
	for _, l := range lines {
		if strings.Contains(l, "Approve") {
			row = l
		}
	}
	assert.Contains(t, row, "Reject")
	assert.Equal(t, 2, strings.Count(output, "▼"))
}

func TestRenderASCII_WithoutTable(t *testing.T) {
	output := RenderASCII(approval(t), nil)

	assert.Contains(t, output, "│ Review │")
	assert.NotContains(t, output, "#1")
	assert.Equal(t, 3, strings.Count(output, "▼"))
}

func TestRenderASCII_Unsupported(t *testing.T) {
	d, err := NewBuilder("x").
		Start("s").
		AddNode(Node{ID: "p", Kind: NodeKindUnsupported, Element: "parallelGateway"}).
		Flow("s", "p").
		Build()
	require.NoError(t, err)

	output := RenderASCII(d, nil)
	assert.Contains(t, output, "--- unsupported elements ---")
	assert.Contains(t, output, "p (parallelGateway)")
}

func TestRenderImage(t *testing.T) {
	png, err := RenderImage(context.Background(), approval(t), approvalTasks(), ImagePNG)
	require.NoError(t, err)
	require.True(t, len(png) > 8)

	assert.Equal(t, byte(0x89), png[0])
	assert.Equal(t, byte('P'), png[1])
	assert.Equal(t, byte('N'), png[2])
	assert.Equal(t, byte('G'), png[3])
}

func TestRenderImage_SVG(t *testing.T) {
	svg, err := RenderImage(context.Background(), approval(t), nil, ImageSVG)
	require.NoError(t, err)
	assert.Contains(t, string(svg), "<svg")
}

func TestRenderImage_UnknownFormat(t *testing.T) {
	_, err := RenderImage(context.Background(), approval(t), nil, "gif")
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}
