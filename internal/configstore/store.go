// Package configstore manages the calibration config JSON files written by
// completed calibrations. Files live in per-device-kind directories; the
// store only lists and deletes them, it never parses their contents.
package configstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nicolas-rabault/lelab/internal/infrastructure/logging"
)

// ErrUnknownDeviceKind is returned for a device kind with no config
// directory.
var ErrUnknownDeviceKind = errors.New("unknown device type")

// ErrNotFound is returned when a named config file does not exist.
var ErrNotFound = errors.New("configuration file not found")

// Entry describes one calibration config file.
type Entry struct {
	Name     string    `json:"name"`
	Filename string    `json:"filename"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Store lists and deletes calibration config files.
type Store struct {
	leaderDir   string
	followerDir string
	log         *logging.Logger
}

// New creates a store over the leader (teleop) and follower (robot) config
// directories.
func New(leaderDir, followerDir string, log *logging.Logger) *Store {
	if log == nil {
		log = logging.NewDefault()
	}
	return &Store{
		leaderDir:   leaderDir,
		followerDir: followerDir,
		log:         log,
	}
}

// List returns the config entries for one device kind, sorted by name.
func (s *Store) List(deviceKind string) ([]Entry, error) {
	dir, err := s.dirFor(deviceKind)
	if err != nil {
		return nil, err
	}
	return listDir(dir)
}

// ListAll returns the leader and follower config filenames, mirroring the
// combined listing the frontend uses to populate its dropdowns. Missing
// directories yield empty lists, not errors.
func (s *Store) ListAll() (leader, follower []string) {
	return names(s.leaderDir), names(s.followerDir)
}

// Delete removes one named config file for a device kind.
func (s *Store) Delete(deviceKind, name string) error {
	dir, err := s.dirFor(deviceKind)
	if err != nil {
		return err
	}
	if name != filepath.Base(name) || name == "." || name == "" {
		return fmt.Errorf("invalid config name: %q", name)
	}

	path := filepath.Join(dir, name+".json")
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete config: %w", err)
	}
	s.log.Info("deleted calibration config", zap.String("path", path))
	return nil
}

func (s *Store) dirFor(deviceKind string) (string, error) {
	switch deviceKind {
	case "robot":
		return s.followerDir, nil
	case "teleop":
		return s.leaderDir, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDeviceKind, deviceKind)
	}
}

func listDir(dir string) ([]Entry, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to read config dir: %w", err)
	}

	entries := make([]Entry, 0, len(dirents))
	for _, de := range dirents {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Name:     strings.TrimSuffix(de.Name(), ".json"),
			Filename: de.Name(),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func names(dir string) []string {
	entries, err := listDir(dir)
	if err != nil {
		return []string{}
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Filename
	}
	return out
}
