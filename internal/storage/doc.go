// Package storage persists the tracker state (account -> snapshot) between runs.
//
// It currently supports:
//   - "file": a single JSON document, replaced atomically (temp file + rename)
//   - "sqlite": a SQLite database, replaced inside one transaction
//
// Load never fails hard: a missing or unreadable state is logged and an empty
// state is returned, which makes the next cycle report every artifact as new.
package storage
