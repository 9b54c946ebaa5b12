package tracker

import (
	"sort"
	"time"
)

// Detect compares one account's previous snapshot with the current one and
// returns the change events: new artifacts first, then updated artifacts, each
// group ascending by id.
//
// prev may be nil for an account that was never observed. Artifacts missing
// from curr are not reported.
func Detect(owner string, prev *AccountSnapshot, curr AccountSnapshot) []ChangeEvent {
	var prevArts map[string]ArtifactRecord
	if prev != nil {
		prevArts = prev.Artifacts
	}

	ids := make([]string, 0, len(curr.Artifacts))
	for id := range curr.Artifacts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var added, updated []ChangeEvent
	for _, id := range ids {
		cur := curr.Artifacts[id]
		old, seen := prevArts[id]
		if !seen {
			added = append(added, ChangeEvent{Kind: KindNewArtifact, Owner: owner, ID: id, Record: cur})
			continue
		}
		if reason := compare(old, cur); reason != nil {
			updated = append(updated, ChangeEvent{Kind: KindUpdatedArtifact, Owner: owner, ID: id, Record: cur, Reason: reason})
		}
	}

	out := make([]ChangeEvent, 0, len(added)+len(updated))
	out = append(out, added...)
	return append(out, updated...)
}

// compare returns nil when the record is unchanged. Hashes win over
// timestamps: last_modified is only consulted when a hash is missing on
// either side or both hashes are equal.
func compare(old, cur ArtifactRecord) *UpdateReason {
	if old.ContentHash != nil && cur.ContentHash != nil && *old.ContentHash != *cur.ContentHash {
		return &UpdateReason{
			Kind:    ReasonContentHashChanged,
			OldHash: *old.ContentHash,
			NewHash: *cur.ContentHash,
		}
	}
	if !sameInstant(old.LastModified, cur.LastModified) {
		return &UpdateReason{
			Kind:        ReasonLastModifiedChanged,
			OldModified: old.LastModified,
			NewModified: cur.LastModified,
		}
	}
	return nil
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
