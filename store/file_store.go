package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vnkhanh/scholar-ai-backend/logger"
	"github.com/vnkhanh/scholar-ai-backend/models"
)

const (
	guideExt = ".json"
	tmpExt   = ".tmp"
)

// FileStore keeps every guide as <dir>/<id>.json. Writes go through a temp
// file in the same directory so a crashed write never leaves a torn document.
type FileStore struct {
	dir string
	log *logger.Logger
	now func() time.Time
}

func NewFileStore(dir string, log *logger.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir, log: logger.OrNop(log), now: time.Now}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+guideExt)
}

func (s *FileStore) Create(ctx context.Context, g models.StudyGuide) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if !ValidID(g.ID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, g.ID)
	}
	if err := g.Validate(); err != nil {
		return "", err
	}

	tmp, err := s.writeTemp(g)
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp)

	// Link fails when the target exists, unlike Rename.
	if err := os.Link(tmp, s.path(g.ID)); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrExists, g.ID)
		}
		return "", fmt.Errorf("store guide %s: %w", g.ID, err)
	}
	return g.ID, nil
}

func (s *FileStore) Get(ctx context.Context, id string) (models.StudyGuide, error) {
	if err := ctx.Err(); err != nil {
		return models.StudyGuide{}, err
	}
	if !ValidID(id) {
		return models.StudyGuide{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.read(s.path(id))
}

func (s *FileStore) read(path string) (models.StudyGuide, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			id := strings.TrimSuffix(filepath.Base(path), guideExt)
			return models.StudyGuide{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return models.StudyGuide{}, fmt.Errorf("read %s: %w", path, err)
	}
	var g models.StudyGuide
	if err := json.Unmarshal(data, &g); err != nil {
		return models.StudyGuide{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return g, nil
}

// List skips files it cannot decode and logs them.
func (s *FileStore) List(ctx context.Context) ([]models.GuideSummary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.dir, err)
	}
	out := make([]models.GuideSummary, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || filepath.Ext(e.Name()) != guideExt {
			continue
		}
		g, err := s.read(filepath.Join(s.dir, e.Name()))
		if err != nil {
			s.log.Warn("skip unreadable guide file", "file", e.Name(), "error", err)
			continue
		}
		out = append(out, g.Summarize())
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *FileStore) Update(ctx context.Context, id string, updates map[string]any) error {
	g, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	merged, err := models.ApplyUpdates(g, updates)
	if err != nil {
		return err
	}
	return s.replace(merged)
}

func (s *FileStore) SetScheduleCompleted(ctx context.Context, id string, index int, completed bool) error {
	g, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := g.SetScheduleCompleted(index, completed); err != nil {
		return err
	}
	return s.replace(g)
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !ValidID(id) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := os.Remove(s.path(id)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("delete guide %s: %w", id, err)
	}
	return nil
}

func (s *FileStore) Ping(ctx context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	return nil
}

func (s *FileStore) replace(g models.StudyGuide) error {
	tmp, err := s.writeTemp(g)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path(g.ID)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace guide %s: %w", g.ID, err)
	}
	return nil
}

func (s *FileStore) writeTemp(g models.StudyGuide) (string, error) {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode guide %s: %w", g.ID, err)
	}
	f, err := os.CreateTemp(s.dir, g.ID+"-*"+tmpExt)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return f.Name(), nil
}

// SweepTemp removes temp files older than maxAge left behind by interrupted
// writes and returns how many were removed.
func (s *FileStore) SweepTemp(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != tmpExt {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn("remove stale temp file", "file", e.Name(), "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

// StartJanitor sweeps once right away and then every interval until ctx is done.
func (s *FileStore) StartJanitor(ctx context.Context, interval, maxAge time.Duration) {
	sweep := func() {
		n, err := s.SweepTemp(maxAge)
		if err != nil {
			s.log.Warn("temp file sweep failed", "dir", s.dir, "error", err)
			return
		}
		if n > 0 {
			s.log.Info("removed stale temp files", "count", n)
		}
	}
	sweep()

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweep()
			}
		}
	}()
	s.log.Info("store janitor started", "interval", interval.String())
}

func sortNewestFirst(list []models.GuideSummary) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].CreatedAt != list[j].CreatedAt {
			return list[i].CreatedAt > list[j].CreatedAt
		}
		return list[i].ID < list[j].ID
	})
}
