package prefs

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cockroachdb/pebble/v2"
)

// DefaultIcon is used when no icon was saved.
const DefaultIcon = "😊"

var (
	keyDisplayName = []byte("savedDisplayName")
	keyIcon        = []byte("savedIcon")
)

// Profile is the saved two-slot record.
type Profile struct {
	DisplayName string
	Icon        string
}

// IconOrDefault returns the saved icon, or DefaultIcon when none was saved.
func (p Profile) IconOrDefault() string {
	if p.Icon == "" {
		return DefaultIcon
	}
	return p.Icon
}

// Store is a pebble-backed profile store.
type Store struct {
	db     *pebble.DB
	logger *slog.Logger
}

// Open opens (or creates) the store under dir.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir == "" {
		return nil, errors.New("profile data path is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}

	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open profile store: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Load reads the saved profile. A missing record is the zero Profile.
func (s *Store) Load() (Profile, error) {
	name, err := s.get(keyDisplayName)
	if err != nil {
		return Profile{}, err
	}
	icon, err := s.get(keyIcon)
	if err != nil {
		return Profile{}, err
	}
	return Profile{DisplayName: name, Icon: icon}, nil
}

// SaveProfile writes both slots in one synced batch.
func (s *Store) SaveProfile(displayName, icon string) error {
	b := s.db.NewBatch()
	defer b.Close()

	if err := b.Set(keyDisplayName, []byte(displayName), nil); err != nil {
		return fmt.Errorf("stage display name: %w", err)
	}
	if err := b.Set(keyIcon, []byte(icon), nil); err != nil {
		return fmt.Errorf("stage icon: %w", err)
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}

	s.logger.Debug("profile saved", "display_name", displayName)
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) get(key []byte) (string, error) {
	val, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	defer closer.Close()
	return string(val), nil
}
