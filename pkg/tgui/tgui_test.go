package tgui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapingBuilders(t *testing.T) {
	assert.Equal(t, H("<b>a &lt;b&gt;</b>"), B("a <b>"))
	assert.Equal(t, H(`<a href="https://x/?a=1&amp;b=&#34;2&#34;">x &amp; y</a>`), Link("x & y", `https://x/?a=1&b="2"`))
	assert.Equal(t, H("<code>a&amp;b</code>"), Code("a&b"))
}

func TestTruncRunes(t *testing.T) {
	assert.Equal(t, "héll…", TruncRunes("héllo world", 4))
	assert.Equal(t, "hi", TruncRunes("hi", 4))
	assert.Equal(t, "", TruncRunes("hi", 0))
}
