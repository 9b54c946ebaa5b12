package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// DefaultFilePath is used when the file sink is enabled without a path.
const DefaultFilePath = "hftracker.log"

type Config struct {
	Level   string
	Console bool
	File    FileConfig
}

type FileConfig struct {
	Enabled bool
	Path    string
}

// Service owns the process sinks and lets config reloads change level and
// outputs while Loggers handed out earlier keep working.
type Service struct {
	mu   sync.Mutex
	file *os.File
	root atomic.Pointer[zerolog.Logger]
}

// New builds the Service from cfg and returns it with its root Logger.
func New(cfg Config) (*Service, Logger) {
	initGlobals()
	s := &Service{}
	s.Apply(cfg)
	return s, Logger{svc: s}
}

func (s *Service) current() zerolog.Logger {
	if p := s.root.Load(); p != nil {
		return *p
	}
	return zerolog.Nop()
}

// Apply switches level and sinks. A file that cannot be opened is reported
// on stderr and the console is used instead. Safe for concurrent use.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, f, err := openSinks(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logx: %v\n", err)
	}
	zl := zerolog.New(w).Level(parseLevel(cfg.Level, zerolog.InfoLevel)).With().Timestamp().Logger()
	s.root.Store(&zl)

	// Swap first, close after: records in flight never hit a closed file.
	old := s.file
	s.file = f
	if old != nil {
		_ = old.Close()
	}
}

// Close flushes and closes the file sink, if any.
func (s *Service) Close() error {
	s.mu.Lock()
	f := s.file
	s.file = nil
	s.mu.Unlock()
	if f == nil {
		return nil
	}
	return f.Close()
}

// openSinks returns the combined writer and the opened log file (nil when the
// file sink is off or failed). The console is the fallback sink.
func openSinks(cfg Config) (io.Writer, *os.File, error) {
	var (
		sinks []io.Writer
		file  *os.File
		err   error
	)
	if cfg.Console {
		sinks = append(sinks, consoleWriter(os.Stdout))
	}
	if cfg.File.Enabled {
		path := strings.TrimSpace(cfg.File.Path)
		if path == "" {
			path = DefaultFilePath
		}
		if dir := filepath.Dir(path); dir != "." {
			_ = os.MkdirAll(dir, 0o755)
		}
		file, err = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			err = fmt.Errorf("open log file %q: %w", path, err)
			file = nil
		} else {
			sinks = append(sinks, zerolog.SyncWriter(file))
		}
	}
	switch len(sinks) {
	case 0:
		return consoleWriter(os.Stdout), file, err
	case 1:
		return sinks[0], file, err
	default:
		return zerolog.MultiLevelWriter(sinks...), file, err
	}
}
