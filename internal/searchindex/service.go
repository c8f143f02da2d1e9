package searchindex

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sha1n/mcp-sitesearch-server/internal/config"
	"github.com/sha1n/mcp-sitesearch-server/internal/domain"
)

// ErrNotReady is returned while no payload has been loaded successfully.
var ErrNotReady = errors.New("search index not loaded")

// Snapshot is one immutable generation of the loaded search index.
type Snapshot struct {
	Store    *Store
	FullText *FullTextIndex
	VarName  string
	Checksum string
	LoadedAt time.Time

	// mu guards FullText against being closed while a search runs on it.
	mu     sync.RWMutex
	closed bool
}

// retire closes the snapshot once in-flight readers are done.
func (s *Snapshot) retire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.FullText.Close()
}

// Service owns the current search index snapshot and replaces it on reload.
type Service struct {
	settings *config.SearchIndexSettings
	metrics  *Metrics

	current  atomic.Pointer[Snapshot]
	reloadMu sync.Mutex
	lastErr  atomic.Pointer[error]
}

// NewService creates a new search index service. Metrics are registered with
// reg when it is not nil.
func NewService(settings *config.SearchIndexSettings, reg prometheus.Registerer) (*Service, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings cannot be nil")
	}
	if settings.Path == "" {
		return nil, fmt.Errorf("index path cannot be empty")
	}

	return &Service{
		settings: settings,
		metrics:  NewMetrics(reg),
	}, nil
}

// Initialize performs the first load. On failure the service stays not ready
// and the error is returned for the caller to surface.
func (s *Service) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.Reload(); err != nil {
		return fmt.Errorf("failed to load search index: %w", err)
	}
	return nil
}

// Reload reads the payload file and, if it changed, atomically replaces the
// current snapshot. A failed reload keeps the previous snapshot.
func (s *Service) Reload() error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	src, err := os.ReadFile(s.settings.Path)
	if err != nil {
		return s.reloadFailed(fmt.Errorf("failed to read payload file: %w", err))
	}

	sum := sha256.Sum256(src)
	checksum := hex.EncodeToString(sum[:])
	if prev := s.current.Load(); prev != nil && prev.Checksum == checksum {
		s.lastErr.Store(nil)
		s.metrics.Reloads.WithLabelValues(ReloadUnchanged).Inc()
		slog.Debug("Search index unchanged", "path", s.settings.Path)
		return nil
	}

	payload, err := Parse(src)
	if err != nil {
		return s.reloadFailed(err)
	}

	store := NewStore(payload.Records)
	fullText, err := NewFullTextIndex(store)
	if err != nil {
		return s.reloadFailed(err)
	}

	varName := payload.VarName
	if varName == "" {
		varName = s.settings.VarName
	}

	next := &Snapshot{
		Store:    store,
		FullText: fullText,
		VarName:  varName,
		Checksum: checksum,
		LoadedAt: time.Now(),
	}

	prev := s.current.Swap(next)
	s.lastErr.Store(nil)
	s.metrics.Reloads.WithLabelValues(ReloadLoaded).Inc()
	s.metrics.Records.Set(float64(store.Len()))
	slog.Info("Search index loaded", "path", s.settings.Path, "records", store.Len(), "checksum", checksum[:12])

	if prev != nil {
		if err := prev.retire(); err != nil {
			slog.Error("Failed to close previous search index", "error", err)
		}
	}
	return nil
}

func (s *Service) reloadFailed(err error) error {
	s.lastErr.Store(&err)
	s.metrics.Reloads.WithLabelValues(ReloadFailed).Inc()
	if s.current.Load() != nil {
		slog.Error("Search index reload failed, keeping previous index", "path", s.settings.Path, "error", err)
	} else {
		slog.Error("Search index load failed, search is disabled", "path", s.settings.Path, "error", err)
	}
	return err
}

// Watch reloads the payload whenever its file changes, until ctx is done.
// Events are debounced because site generators write files in several steps.
func (s *Service) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory: rebuilds often replace the file via rename
	dir := filepath.Dir(s.settings.Path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	target := filepath.Clean(s.settings.Path)

	slog.Info("Watching search index", "path", target)

	var (
		timer  *time.Timer
		reload <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(s.settings.WatchDebounce)
				reload = timer.C
			} else {
				timer.Reset(s.settings.WatchDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Search index watcher error", "error", err)
		case <-reload:
			timer, reload = nil, nil
			// errors are logged and kept in LastError
			_ = s.Reload()
		}
	}
}

// Acquire returns the current snapshot, held open until release is called.
func (s *Service) Acquire() (snap *Snapshot, release func(), err error) {
	for {
		snap = s.current.Load()
		if snap == nil {
			return nil, nil, ErrNotReady
		}
		snap.mu.RLock()
		if !snap.closed {
			return snap, snap.mu.RUnlock, nil
		}
		// Retired between Load and RLock; the replacement is already published.
		snap.mu.RUnlock()
	}
}

// IsReady returns true once a payload has been loaded.
func (s *Service) IsReady() bool {
	return s.current.Load() != nil
}

// LastError returns the error of the most recent failed load, or nil.
func (s *Service) LastError() error {
	if p := s.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

// Query runs a substring query on the current snapshot.
func (s *Service) Query(text string) ([]Match, error) {
	snap, release, err := s.Acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	s.metrics.Queries.WithLabelValues(config.SearchModeSubstring).Inc()
	return snap.Store.QueryMatches(text), nil
}

// Search runs a full-text query on the current snapshot.
func (s *Service) Search(text string, limit int) (*FullTextResult, error) {
	snap, release, err := s.Acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	s.metrics.Queries.WithLabelValues(config.SearchModeFullText).Inc()
	return snap.FullText.Search(text, limit)
}

// Get returns the record with the given URI from the current snapshot.
func (s *Service) Get(uri string) (domain.PageRecord, bool, error) {
	snap, release, err := s.Acquire()
	if err != nil {
		return domain.PageRecord{}, false, err
	}
	defer release()

	rec, ok := snap.Store.Get(uri)
	return rec, ok, nil
}

// GetSettings returns the service settings.
func (s *Service) GetSettings() *config.SearchIndexSettings {
	return s.settings
}

// Metrics returns the service collectors.
func (s *Service) Metrics() *Metrics {
	return s.metrics
}

// Close releases the current snapshot.
func (s *Service) Close() error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	prev := s.current.Swap(nil)
	if prev == nil {
		return nil
	}
	if err := prev.retire(); err != nil {
		return fmt.Errorf("failed to close search index: %w", err)
	}
	return nil
}
