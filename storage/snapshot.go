// Package storage persists standings snapshots and match transcripts. Local
// snapshots use a write-temp-then-rename pattern so a crash mid-write never
// corrupts the previous valid file; finished transcripts can additionally be
// uploaded to S3-compatible object storage.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/models"
)

const standingsFile = "standings.json"

type SnapshotStore struct {
	dir string
}

func NewSnapshotStore(dir string) (*SnapshotStore, error) {
	if dir == "" {
		return nil, errors.New("snapshot directory is required")
	}
	if err := os.MkdirAll(filepath.Join(dir, "matches"), 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	return &SnapshotStore{dir: dir}, nil
}

type standingsSnapshot struct {
	SavedAt time.Time               `json:"saved_at"`
	Entries []models.StandingsEntry `json:"entries"`
}

func (s *SnapshotStore) SaveStandings(_ context.Context, entries []models.StandingsEntry) error {
	return s.writeAtomic(standingsFile, standingsSnapshot{
		SavedAt: time.Now().UTC(),
		Entries: entries,
	})
}

// LoadStandings restores the last snapshot; a missing file is not an error,
// it just means a fresh start.
func (s *SnapshotStore) LoadStandings() ([]models.StandingsEntry, error) {
	raw, err := os.ReadFile(filepath.Join(s.dir, standingsFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read standings snapshot: %w", err)
	}
	var snap standingsSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("parse standings snapshot: %w", err)
	}
	return snap.Entries, nil
}

func (s *SnapshotStore) SaveMatch(_ context.Context, m *models.Match) error {
	return s.writeAtomic(filepath.Join("matches", m.ID+".json"), m)
}

func (s *SnapshotStore) writeAtomic(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "\t")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	final := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(filepath.Dir(final), filepath.Base(name)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp for %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp for %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp for %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		return fmt.Errorf("rename temp for %s: %w", name, err)
	}
	return nil
}
