package tracker

import (
	"sort"
	"time"
)

// ArtifactRecord is one observed artifact (a model) as fetched from the catalog.
// Pointer fields are nil when the catalog did not report them.
type ArtifactRecord struct {
	ID           string
	Owner        string
	ContentHash  *string
	LastModified *time.Time
	CreatedAt    *time.Time
	UpdatedAt    *time.Time
	Tags         []string
	Downloads    int64
}

// Normalize returns a copy with the defaults applied: tags is never nil and
// downloads is never negative.
func (r ArtifactRecord) Normalize() ArtifactRecord {
	if r.Tags == nil {
		r.Tags = []string{}
	} else {
		r.Tags = append([]string(nil), r.Tags...)
	}
	if r.Downloads < 0 {
		r.Downloads = 0
	}
	return r
}

// Hash returns the content hash or "" when absent.
func (r ArtifactRecord) Hash() string {
	if r.ContentHash == nil {
		return ""
	}
	return *r.ContentHash
}

// RecencyKey is the timestamp used to order listings most-recent-first:
// last_modified, then updated_at, then created_at.
func (r ArtifactRecord) RecencyKey() time.Time {
	switch {
	case r.LastModified != nil:
		return *r.LastModified
	case r.UpdatedAt != nil:
		return *r.UpdatedAt
	case r.CreatedAt != nil:
		return *r.CreatedAt
	default:
		return time.Time{}
	}
}

// SortByRecency orders records most recent first; ties break on id.
func SortByRecency(rs []ArtifactRecord) {
	sort.SliceStable(rs, func(i, j int) bool {
		a, b := rs[i].RecencyKey(), rs[j].RecencyKey()
		if !a.Equal(b) {
			return a.After(b)
		}
		return rs[i].ID < rs[j].ID
	})
}

// AccountSnapshot is the recorded state of one account at LastChecked.
// Count always equals len(Artifacts); build it with NewSnapshot.
type AccountSnapshot struct {
	Artifacts   map[string]ArtifactRecord
	LastChecked time.Time
	Count       int
}

// NewSnapshot builds a snapshot from records. A later record with the same id
// replaces an earlier one.
func NewSnapshot(records []ArtifactRecord, checkedAt time.Time) AccountSnapshot {
	m := make(map[string]ArtifactRecord, len(records))
	for _, r := range records {
		if r.ID == "" {
			continue
		}
		m[r.ID] = r.Normalize()
	}
	return AccountSnapshot{Artifacts: m, LastChecked: checkedAt, Count: len(m)}
}

// IDs returns the artifact ids in ascending order.
func (s AccountSnapshot) IDs() []string {
	ids := make([]string, 0, len(s.Artifacts))
	for id := range s.Artifacts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// State maps account name to its latest snapshot.
//
// It is owned by a single goroutine (the scan cycle); the snapshot store is the
// only component that reads it from or writes it to durable storage.
type State struct {
	Accounts map[string]AccountSnapshot
}

func NewState() *State {
	return &State{Accounts: map[string]AccountSnapshot{}}
}

// Get returns the snapshot for account, or nil if the account was never seen.
func (s *State) Get(account string) *AccountSnapshot {
	if s == nil || s.Accounts == nil {
		return nil
	}
	snap, ok := s.Accounts[account]
	if !ok {
		return nil
	}
	return &snap
}

// Put replaces the snapshot for account wholesale.
func (s *State) Put(account string, snap AccountSnapshot) {
	if s.Accounts == nil {
		s.Accounts = map[string]AccountSnapshot{}
	}
	snap.Count = len(snap.Artifacts)
	s.Accounts[account] = snap
}

// Names returns the account names in ascending order.
func (s *State) Names() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.Accounts))
	for name := range s.Accounts {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
