package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"hftracker/internal/tracker"
	logx "hftracker/pkg/logx"
)

// fileStore keeps the whole state in one JSON document.
//
// Save writes <path>.tmp-* in the same directory, fsyncs it and renames it
// over <path>, so Load never observes a partially written document.
type fileStore struct {
	log  logx.Logger
	path string

	mu     sync.Mutex
	closed bool
}

func openFile(cfg Config, log logx.Logger) Store {
	return &fileStore{log: log, path: cfg.Path}
}

func (s *fileStore) Load(ctx context.Context) *tracker.State {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.log.Info("no existing state file; starting fresh", logx.String("path", s.path))
		} else {
			s.log.Error("state file unreadable; starting fresh", logx.String("path", s.path), logx.Err(err))
		}
		return tracker.NewState()
	}

	var docs map[string]accountDoc
	if err := json.Unmarshal(b, &docs); err != nil {
		s.log.Error("state file corrupt; starting fresh", logx.String("path", s.path), logx.Err(err))
		return tracker.NewState()
	}
	st := decodeState(docs, s.log)
	s.log.Info("state loaded", logx.String("path", s.path), logx.Int("accounts", len(st.Accounts)))
	return st
}

func (s *fileStore) Save(ctx context.Context, st *tracker.State) error {
	_ = ctx
	if st == nil {
		st = tracker.NewState()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	b, err := json.MarshalIndent(encodeState(st), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	f, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmp := f.Name()
	cleanup := func() { _ = os.Remove(tmp) }

	if _, err := f.Write(append(b, '\n')); err != nil {
		_ = f.Close()
		cleanup()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		cleanup()
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		cleanup()
		return fmt.Errorf("replace state file: %w", err)
	}

	s.log.Debug("state saved", logx.String("path", s.path), logx.Int("accounts", len(st.Accounts)))
	return nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
