package tracker

import "time"

type EventKind string

const (
	KindNewArtifact     EventKind = "new_artifact"
	KindUpdatedArtifact EventKind = "updated_artifact"
)

type ReasonKind string

const (
	ReasonContentHashChanged  ReasonKind = "content_hash_changed"
	ReasonLastModifiedChanged ReasonKind = "last_modified_changed"
)

// UpdateReason explains an UpdatedArtifact event. Exactly one pair of Old/New
// fields is meaningful, selected by Kind.
type UpdateReason struct {
	Kind ReasonKind

	OldHash string
	NewHash string

	OldModified *time.Time
	NewModified *time.Time
}

// ChangeEvent is a detected difference for one artifact of one account.
// Reason is nil for KindNewArtifact and set for KindUpdatedArtifact.
type ChangeEvent struct {
	Kind   EventKind
	Owner  string
	ID     string
	Record ArtifactRecord
	Reason *UpdateReason
}

func (e ChangeEvent) IsNew() bool     { return e.Kind == KindNewArtifact }
func (e ChangeEvent) IsUpdated() bool { return e.Kind == KindUpdatedArtifact }
