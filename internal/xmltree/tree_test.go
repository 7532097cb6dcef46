package xmltree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `<?xml version="1.0"?>
<Root>
  <Item Kind="a">first</Item>
  <Item Kind="b">second</Item>
  <Item Kind="c"></Item>
  <Title>Effects of CO<sub>2</sub> on <i>E. coli</i> growth.</Title>
  <Nested><Leaf>  padded  </Leaf></Nested>
</Root>`

func TestNode_Queries(t *testing.T) {
	doc, err := ParseString(sampleDoc)
	require.NoError(t, err)

	root := doc.First("/Root")
	require.NotNil(t, root)
	assert.Equal(t, "Root", root.Name())

	t.Run("all preserves document order", func(t *testing.T) {
		items := root.All("Item")
		require.Len(t, items, 3)
		assert.Equal(t, "a", items[0].Attr("Kind"))
		assert.Equal(t, "b", items[1].Attr("Kind"))
		assert.Equal(t, "", items[0].Attr("Missing"))
	})

	t.Run("first text takes first occurrence", func(t *testing.T) {
		text, ok := root.FirstText("Item")
		assert.True(t, ok)
		assert.Equal(t, "first", text)
	})

	t.Run("all text skips empty elements", func(t *testing.T) {
		assert.Equal(t, []string{"first", "second"}, root.AllText("Item"))
	})

	t.Run("missing path", func(t *testing.T) {
		assert.Nil(t, root.First("Nope"))
		assert.Nil(t, root.All("Nope"))
		_, ok := root.FirstText("Nope")
		assert.False(t, ok)
	})

	t.Run("inline markup is flattened", func(t *testing.T) {
		text, ok := root.FirstText("Title")
		assert.True(t, ok)
		assert.Equal(t, "Effects of CO2 on E. coli growth.", text)
	})

	t.Run("text is trimmed", func(t *testing.T) {
		text, _ := root.FirstText("Nested/Leaf")
		assert.Equal(t, "padded", text)
	})

	t.Run("invalid expression yields nothing", func(t *testing.T) {
		assert.Nil(t, root.First("Item[@"))
		assert.Nil(t, root.All("Item[@"))
	})

	t.Run("xml serialization", func(t *testing.T) {
		assert.Contains(t, root.First("Nested").XML(), "<Leaf>")
	})
}

func TestParse_Malformed(t *testing.T) {
	_, err := ParseString("<Root><Open></Root>")
	assert.Error(t, err)
}
