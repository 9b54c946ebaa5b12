package storage

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"hftracker/internal/tracker"
	logx "hftracker/pkg/logx"
)

// On-disk shape. Timestamps are ISO 8601 with or without a zone, so files
// written by earlier Python versions of the tracker still load:
//
//	{"<account>": {"models": {"<id>": {...}}, "last_checked": "...", "model_count": N}}
type accountDoc struct {
	Models      map[string]modelDoc `json:"models"`
	LastChecked string              `json:"last_checked"`
	ModelCount  int                 `json:"model_count"`
}

type modelDoc struct {
	ID           string   `json:"id"`
	Author       *string  `json:"author"`
	CreatedAt    *string  `json:"created_at"`
	UpdatedAt    *string  `json:"updated_at"`
	LastModified *string  `json:"last_modified"`
	SHA          *string  `json:"sha"`
	Tags         []string `json:"tags"`
	Downloads    *int64   `json:"downloads"`
}

// parseTime reads a stored timestamp. RFC 3339 is what this package writes;
// anything else goes through dateparse, which covers Python's isoformat()
// output. Values without a zone (last_checked of older files) are local time.
func parseTime(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	t, err := dateparse.ParseIn(s, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func formatTime(t time.Time) string { return t.Format(time.RFC3339Nano) }

func timePtrString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// decodeTime maps a stored timestamp to a record field. Unparsable values are
// treated as absent and logged.
func decodeTime(raw *string, field, id string, log logx.Logger) *time.Time {
	if raw == nil {
		return nil
	}
	t, ok := parseTime(*raw)
	if !ok {
		log.Warn("ignoring unparsable timestamp", logx.String("field", field), logx.String("id", id), logx.String("value", *raw))
		return nil
	}
	return &t
}

func encodeRecord(r tracker.ArtifactRecord) modelDoc {
	r = r.Normalize()
	dl := r.Downloads
	var sha *string
	if r.ContentHash != nil {
		h := *r.ContentHash
		sha = &h
	}
	return modelDoc{
		ID:           r.ID,
		Author:       optString(r.Owner),
		CreatedAt:    timePtrString(r.CreatedAt),
		UpdatedAt:    timePtrString(r.UpdatedAt),
		LastModified: timePtrString(r.LastModified),
		SHA:          sha,
		Tags:         r.Tags,
		Downloads:    &dl,
	}
}

func decodeRecord(key string, d modelDoc, log logx.Logger) tracker.ArtifactRecord {
	id := d.ID
	if id == "" {
		id = key
	}
	r := tracker.ArtifactRecord{
		ID:           id,
		ContentHash:  d.SHA,
		CreatedAt:    decodeTime(d.CreatedAt, "created_at", id, log),
		UpdatedAt:    decodeTime(d.UpdatedAt, "updated_at", id, log),
		LastModified: decodeTime(d.LastModified, "last_modified", id, log),
		Tags:         d.Tags,
	}
	if d.Author != nil {
		r.Owner = *d.Author
	}
	if d.Downloads != nil {
		r.Downloads = *d.Downloads
	}
	return r.Normalize()
}

func encodeState(st *tracker.State) map[string]accountDoc {
	out := make(map[string]accountDoc, len(st.Accounts))
	for name, snap := range st.Accounts {
		models := make(map[string]modelDoc, len(snap.Artifacts))
		for id, r := range snap.Artifacts {
			models[id] = encodeRecord(r)
		}
		out[name] = accountDoc{
			Models:      models,
			LastChecked: formatTime(snap.LastChecked),
			ModelCount:  len(models),
		}
	}
	return out
}

func decodeState(docs map[string]accountDoc, log logx.Logger) *tracker.State {
	st := tracker.NewState()
	for name, doc := range docs {
		records := make([]tracker.ArtifactRecord, 0, len(doc.Models))
		for key, m := range doc.Models {
			records = append(records, decodeRecord(key, m, log))
		}
		checked, _ := parseTime(doc.LastChecked)
		// Count is re-derived; a stale model_count on disk is ignored.
		st.Put(name, tracker.NewSnapshot(records, checked))
	}
	return st
}
