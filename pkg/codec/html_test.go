package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeedHTMLBlockAndInline(t *testing.T) {
	nodes, err := ParseSeedHTML("<p>hello <b>world</b></p>")
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	p := nodes[0]
	assert.Equal(t, "element", p.Kind)
	assert.Equal(t, "p", p.Tag)
	require.Len(t, p.Children, 2)
	assert.Equal(t, "text", p.Children[0].Kind)
	assert.Equal(t, "hello ", p.Children[0].Text)
	assert.Equal(t, "element", p.Children[1].Kind)
	assert.Equal(t, "b", p.Children[1].Tag)
}

func TestParseSeedHTMLSkipsScriptAndWhitespace(t *testing.T) {
	nodes, err := ParseSeedHTML("<p>  </p><script>alert(1)</script><p>real</p>")
	require.NoError(t, err)

	var tags []string
	for _, n := range nodes {
		tags = append(tags, n.Tag)
	}
	assert.NotContains(t, tags, "script")
	require.Len(t, nodes, 2)
	assert.Empty(t, nodes[0].Children, "whitespace-only text is dropped")
}

func TestIsBlockTag(t *testing.T) {
	assert.True(t, IsBlockTag("p"))
	assert.True(t, IsBlockTag("div"))
	assert.False(t, IsBlockTag("span"))
	assert.False(t, IsBlockTag("b"))
}
