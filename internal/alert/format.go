// Package alert turns change events into channel-agnostic messages and renders
// them for the Telegram HTML dialect.
package alert

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"hftracker/internal/tracker"
	"hftracker/pkg/tgui"
)

const (
	maxTagPreview = 5
	noTags        = "No tags"
	unknown       = "Unknown"
	shortHashLen  = 8
	linkText      = "View on Hugging Face"
)

// Field is one labelled line of a message. Strong marks values that should
// be emphasized; Code marks identifiers such as hashes.
type Field struct {
	Icon   string
	Label  string
	Value  string
	Strong bool
	Code   bool
}

// Message is the semantic form of an alert. Adapters decide the markup.
type Message struct {
	Kind       tracker.EventKind
	Icon       string
	Title      string
	Owner      string
	ArtifactID string
	URL        string
	Fields     []Field
}

// ArtifactURL is the canonical page of an artifact: <base>/<id>.
func ArtifactURL(baseURL, id string) string {
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(id, "/")
}

// Format builds the message for ev. It is deterministic.
func Format(ev tracker.ChangeEvent, baseURL string) Message {
	m := Message{
		Kind:       ev.Kind,
		Owner:      ev.Owner,
		ArtifactID: ev.ID,
		URL:        ArtifactURL(baseURL, ev.ID),
		Fields: []Field{
			{Icon: "👤", Label: "User", Value: ev.Owner, Strong: true},
			{Icon: "📦", Label: "Model", Value: ev.ID, Strong: true},
		},
	}

	switch ev.Kind {
	case tracker.KindNewArtifact:
		m.Icon, m.Title = "🆕", "New Model Detected!"
		m.Fields = append(m.Fields,
			Field{Icon: "🏷️", Label: "Tags", Value: tagPreview(ev.Record.Tags)},
			Field{Icon: "📥", Label: "Downloads", Value: humanize.Comma(ev.Record.Downloads)},
		)
	case tracker.KindUpdatedArtifact:
		m.Icon, m.Title = "🔄", "Model Updated!"
		if r := ev.Reason; r != nil && r.Kind == tracker.ReasonContentHashChanged {
			m.Fields = append(m.Fields, Field{
				Icon:  "🧬",
				Label: "Commit",
				Value: shortHash(r.OldHash) + " → " + shortHash(r.NewHash),
				Code:  true,
			})
		} else if r != nil {
			m.Fields = append(m.Fields, Field{Icon: "🕘", Label: "Previously Modified", Value: formatTime(r.OldModified)})
		}
		m.Fields = append(m.Fields,
			Field{Icon: "📅", Label: "Last Modified", Value: formatTime(ev.Record.LastModified)},
			Field{Icon: "📥", Label: "Downloads", Value: humanize.Comma(ev.Record.Downloads)},
		)
	default:
		m.Icon, m.Title = "ℹ️", "Update detected"
	}
	return m
}

// RenderHTML renders m for Telegram's HTML parse mode.
func RenderHTML(m Message) string {
	lines := make([]tgui.H, 0, len(m.Fields)+3)
	lines = append(lines, tgui.H(m.Icon+" ")+tgui.B(m.Title), "")
	for _, f := range m.Fields {
		var v tgui.H
		switch {
		case f.Strong:
			v = tgui.B(f.Value)
		case f.Code:
			v = tgui.Code(f.Value)
		default:
			v = tgui.Esc(f.Value)
		}
		lines = append(lines, tgui.H(f.Icon+" ")+tgui.Esc(f.Label)+": "+v)
	}
	lines = append(lines, "🔗 "+tgui.Link(linkText, m.URL))
	return joinLines(lines)
}

// RenderText renders m without markup (logs, plain channels).
func RenderText(m Message) string {
	var b strings.Builder
	b.WriteString(m.Icon + " " + m.Title + "\n\n")
	for _, f := range m.Fields {
		b.WriteString(f.Icon + " " + f.Label + ": " + f.Value + "\n")
	}
	b.WriteString("🔗 " + m.URL)
	return b.String()
}

// joinLines keeps intentional blank lines.
func joinLines(lines []tgui.H) string {
	ss := make([]string, len(lines))
	for i, l := range lines {
		ss[i] = l.String()
	}
	return strings.Join(ss, "\n")
}

func tagPreview(tags []string) string {
	if len(tags) == 0 {
		return noTags
	}
	if len(tags) > maxTagPreview {
		tags = tags[:maxTagPreview]
	}
	return strings.Join(tags, ", ")
}

func shortHash(h string) string {
	if h == "" {
		return unknown
	}
	if len(h) > shortHashLen {
		return h[:shortHashLen]
	}
	return h
}

func formatTime(t *time.Time) string {
	if t == nil {
		return unknown
	}
	return t.UTC().Format(time.RFC3339)
}
