package alert

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hftracker/internal/tracker"
)

const base = "https://huggingface.co"

func strp(s string) *string { return &s }

func TestFormatNewArtifact(t *testing.T) {
	ev := tracker.ChangeEvent{
		Kind:  tracker.KindNewArtifact,
		Owner: "acme",
		ID:    "acme/model-a",
		Record: tracker.ArtifactRecord{
			ID:        "acme/model-a",
			Tags:      []string{"t1", "t2", "t3", "t4", "t5", "t6"},
			Downloads: 1234567,
		},
	}
	m := Format(ev, base+"/")
	assert.Equal(t, "https://huggingface.co/acme/model-a", m.URL)
	assert.Equal(t, "New Model Detected!", m.Title)

	html := RenderHTML(m)
	assert.Equal(t, strings.Join([]string{
		"🆕 <b>New Model Detected!</b>",
		"",
		"👤 User: <b>acme</b>",
		"📦 Model: <b>acme/model-a</b>",
		"🏷️ Tags: t1, t2, t3, t4, t5",
		"📥 Downloads: 1,234,567",
		`🔗 <a href="https://huggingface.co/acme/model-a">View on Hugging Face</a>`,
	}, "\n"), html)
	assert.Equal(t, html, RenderHTML(Format(ev, base)), "formatting is deterministic")
}

func TestFormatNewArtifactWithoutTags(t *testing.T) {
	m := Format(tracker.ChangeEvent{Kind: tracker.KindNewArtifact, Owner: "o", ID: "o/m"}, base)
	assert.Contains(t, RenderText(m), "Tags: No tags")
	assert.Contains(t, RenderText(m), "Downloads: 0")
}

func TestFormatHashUpdate(t *testing.T) {
	lm := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	ev := tracker.ChangeEvent{
		Kind:   tracker.KindUpdatedArtifact,
		Owner:  "acme",
		ID:     "acme/model-a",
		Record: tracker.ArtifactRecord{ID: "acme/model-a", ContentHash: strp("def4567890"), LastModified: &lm},
		Reason: &tracker.UpdateReason{Kind: tracker.ReasonContentHashChanged, OldHash: "abc1234567", NewHash: "def4567890"},
	}
	html := RenderHTML(Format(ev, base))
	assert.Contains(t, html, "🔄 <b>Model Updated!</b>")
	assert.Contains(t, html, "Commit: <code>abc12345 → def45678</code>")
	assert.Contains(t, html, "Last Modified: 2024-02-01T00:00:00Z")
	assert.NotContains(t, html, "Previously Modified")
}

func TestFormatTimestampUpdate(t *testing.T) {
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ev := tracker.ChangeEvent{
		Kind:   tracker.KindUpdatedArtifact,
		Owner:  "acme",
		ID:     "acme/model-a",
		Record: tracker.ArtifactRecord{ID: "acme/model-a"},
		Reason: &tracker.UpdateReason{Kind: tracker.ReasonLastModifiedChanged, OldModified: &old},
	}
	text := RenderText(Format(ev, base))
	assert.Contains(t, text, "Previously Modified: 2024-01-01T00:00:00Z")
	assert.Contains(t, text, "Last Modified: Unknown")
}

func TestRenderHTMLEscapes(t *testing.T) {
	m := Format(tracker.ChangeEvent{
		Kind:   tracker.KindNewArtifact,
		Owner:  "a<b>",
		ID:     "a<b>/x&y",
		Record: tracker.ArtifactRecord{Tags: []string{"<script>"}},
	}, base)
	html := RenderHTML(m)
	require.NotContains(t, html, "<script>")
	assert.Contains(t, html, "<b>a&lt;b&gt;</b>")
	assert.Contains(t, html, "&lt;script&gt;")
}
