package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mediagrab/pkg/logger"
	"mediagrab/pkg/models"
)

// Store persists crawl state as a JSON snapshot, written after every page so
// a crash loses at most the page in flight.
type Store struct {
	path   string
	logger logger.Logger
}

// NewStore creates a store for one platform/handle pair under dir.
func NewStore(dir, platform, handle string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	return &Store{
		path:   filepath.Join(dir, fmt.Sprintf("%s_%s.state.json", platform, handle)),
		logger: logger.GetLogger(),
	}, nil
}

// Path returns the state file location.
func (st *Store) Path() string {
	return st.path
}

// Load reads the persisted state. A missing or corrupt file yields an empty
// state; resuming from scratch beats refusing to run.
func (st *Store) Load() *CrawlState {
	data, err := os.ReadFile(st.path)
	if err != nil {
		if !os.IsNotExist(err) {
			st.logger.WarnWithFields("failed to read state file, starting fresh", map[string]interface{}{
				"path":  st.path,
				"error": err.Error(),
			})
		}
		return New()
	}

	var s CrawlState
	if err := json.Unmarshal(data, &s); err != nil {
		st.logger.WarnWithFields("state file is corrupt, starting fresh", map[string]interface{}{
			"path":  st.path,
			"error": err.Error(),
		})
		return New()
	}

	if s.Users == nil {
		s.Users = make(map[string]models.User)
	}
	if s.Posts == nil {
		s.Posts = make(map[string]models.Post)
	}

	st.logger.InfoWithFields("state loaded", map[string]interface{}{
		"path":   st.path,
		"posts":  s.PostCount(),
		"users":  len(s.Users),
		"cursor": s.Cursor,
	})

	return &s
}

// Save writes the state atomically via a temp file in the same directory.
func (st *Store) Save(s *CrawlState) error {
	s.UpdatedAt = time.Now()

	tempPath := st.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary state file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(s); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode state: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync state file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close state file: %w", err)
	}

	if err := os.Rename(tempPath, st.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	st.logger.DebugWithFields("state saved", map[string]interface{}{
		"path":   st.path,
		"posts":  s.PostCount(),
		"cursor": s.Cursor,
	})

	return nil
}
