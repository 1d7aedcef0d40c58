// Package storage provides the persistence layer for research records, analyses
// and raw quote batches.
//
// Records are flat JSON files, one per research record, analysis or quote batch.
// Every file is written once: content goes to a temporary file first and is then
// hard-linked into place, so an existing record is never edited in place and a
// crash never leaves a half-written record behind. A Redis-backed research cache
// is available as an alternative to the file cache.
package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rewired-gh/polyresearch/internal/models"
)

var (
	// ErrCacheMiss is returned when no research record exists for a market.
	ErrCacheMiss = errors.New("research cache miss")
	// ErrRecordExists is returned when a write would replace an existing record.
	ErrRecordExists = errors.New("record already exists")
)

// ResearchCache is a get-or-compute store of research records keyed by market ID.
// Get returns ErrCacheMiss when nothing is stored; any other error means the
// cache could not be read.
type ResearchCache interface {
	Get(ctx context.Context, marketID string) (*models.ResearchRecord, error)
	Put(ctx context.Context, marketID string, record *models.ResearchRecord) error
}

// maxNameCollisions bounds the numeric suffixes tried for timestamped files.
const maxNameCollisions = 100

var plainName = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// FileStore persists records as JSON files under a data directory:
//
//	cache/research_<id>.json
//	processed/analysis_<id>_<unix>_<savedAtNanos>.json
//	raw/markets_<unix>.json
type FileStore struct {
	dataDir         string
	filePermissions os.FileMode
	dirPermissions  os.FileMode
	now             func() time.Time
}

// NewFileStore creates the data directory layout and returns a FileStore.
// If dataDir is empty, an OS-appropriate tmp directory is used.
func NewFileStore(dataDir string) (*FileStore, error) {
	if dataDir == "" {
		dataDir = filepath.Join(os.TempDir(), "polyresearch")
	}

	s := &FileStore{
		dataDir:         dataDir,
		filePermissions: 0o644,
		dirPermissions:  0o755,
		now:             time.Now,
	}
	for _, sub := range []string{"cache", "processed", "raw"} {
		if err := os.MkdirAll(filepath.Join(dataDir, sub), s.dirPermissions); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	return s, nil
}

// DataDir returns the root data directory.
func (s *FileStore) DataDir() string {
	return s.dataDir
}

// Get loads the cached research record for a market.
func (s *FileStore) Get(ctx context.Context, marketID string) (*models.ResearchRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.researchPath(marketID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read research record %s: %w", marketID, err)
	}

	return decodeRecord(data, marketID)
}

// Put stores a research record. Records are never overwritten.
func (s *FileStore) Put(ctx context.Context, marketID string, record *models.ResearchRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkRecord(marketID, record); err != nil {
		return err
	}
	return s.writeOnce(s.researchPath(marketID), record)
}

// SaveAnalysis persists an analysis keyed by market ID, analysis timestamp and
// save time, and returns the path written. The analysis timestamp comes from the
// research record and repeats for cached markets; the save time keeps each run's
// file distinct.
func (s *FileStore) SaveAnalysis(ctx context.Context, analysis *models.Analysis) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	base := fmt.Sprintf("analysis_%s_%d_%d", safeName(analysis.MarketID), analysis.Timestamp.Unix(), s.now().UnixNano())
	return s.writeUnique(filepath.Join(s.dataDir, "processed"), base, analysis)
}

// SaveQuoteBatch persists one fetched quote batch named by its fetch time.
func (s *FileStore) SaveQuoteBatch(ctx context.Context, quotes []models.Quote, unix int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if quotes == nil {
		quotes = []models.Quote{}
	}
	base := fmt.Sprintf("markets_%d", unix)
	return s.writeUnique(filepath.Join(s.dataDir, "raw"), base, quotes)
}

func (s *FileStore) researchPath(marketID string) string {
	return filepath.Join(s.dataDir, "cache", "research_"+safeName(marketID)+".json")
}

// writeUnique writes v to dir/base.json, falling back to dir/base_<n>.json when
// the name is taken.
func (s *FileStore) writeUnique(dir, base string, v interface{}) (string, error) {
	for i := 0; i < maxNameCollisions; i++ {
		name := base
		if i > 0 {
			name = base + "_" + strconv.Itoa(i)
		}
		path := filepath.Join(dir, name+".json")
		err := s.writeOnce(path, v)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, ErrRecordExists) {
			return "", err
		}
	}
	return "", fmt.Errorf("no free file name for %s after %d attempts", base, maxNameCollisions)
}

// writeOnce atomically creates path with the JSON encoding of v. It fails with
// ErrRecordExists if path already exists.
func (s *FileStore) writeOnce(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), s.dirPermissions); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	// Write to temporary file first (atomic write)
	tempPath := path + "." + uuid.NewString() + ".tmp"
	if err := os.WriteFile(tempPath, jsonData, s.filePermissions); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	defer func() { _ = os.Remove(tempPath) }()

	// Link fails instead of replacing an existing file
	if err := os.Link(tempPath, path); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s: %w", filepath.Base(path), ErrRecordExists)
		}
		return fmt.Errorf("failed to link file: %w", err)
	}
	return nil
}

// safeName makes a market ID usable as a file name component. Plain IDs are kept
// as is; anything else becomes "~" plus its unpadded base64url form, so distinct
// IDs never share a name.
func safeName(id string) string {
	if plainName.MatchString(id) {
		return id
	}
	return "~" + base64.RawURLEncoding.EncodeToString([]byte(id))
}

// checkRecord validates a record before it is cached under marketID.
func checkRecord(marketID string, record *models.ResearchRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("invalid research record: %w", err)
	}
	if record.MarketID != marketID {
		return fmt.Errorf("research record for market %q cannot be stored as %q", record.MarketID, marketID)
	}
	return nil
}

// decodeRecord strictly decodes a cached record and checks it belongs to marketID.
func decodeRecord(data []byte, marketID string) (*models.ResearchRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var record models.ResearchRecord
	if err := dec.Decode(&record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal research record %s: %w", marketID, err)
	}
	if record.MarketID != marketID {
		return nil, fmt.Errorf("research record %s holds market %q", marketID, record.MarketID)
	}
	return &record, nil
}
