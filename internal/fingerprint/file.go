package fingerprint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore persists fingerprint records in a single JSON file, one entry per
// session. Writes use temp file + rename for crash safety and owner-only
// permissions. Expired entries from any session are pruned on write.
type FileStore struct {
	filePath string
	mu       sync.Mutex
}

// Compile-time check to ensure FileStore implements Store
var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore for the given path, creating parent
// directories with 0700 permissions if they don't exist.
func NewFileStore(filePath string) (*FileStore, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	return &FileStore{
		filePath: filePath,
	}, nil
}

func (f *FileStore) Save(ctx context.Context, sessionID string, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.readAll()
	if err != nil {
		return err
	}

	now := time.Now()
	for id, r := range records {
		if !now.Before(time.Unix(r.ExpiresAt, 0)) {
			delete(records, id)
		}
	}

	records[sessionID] = persistedRecord{
		FingerprintHash: rec.Hash,
		ExpiresAt:       rec.ExpiresAt.Unix(),
	}

	return f.writeAll(records)
}

func (f *FileStore) Load(ctx context.Context, sessionID string) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.readAll()
	if err != nil {
		return Record{}, false, err
	}

	p, ok := records[sessionID]
	if !ok || p.FingerprintHash == "" {
		return Record{}, false, nil
	}

	return Record{
		Hash:      p.FingerprintHash,
		ExpiresAt: time.Unix(p.ExpiresAt, 0),
	}, true, nil
}

func (f *FileStore) Clear(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := f.readAll()
	if err != nil {
		return err
	}
	if _, ok := records[sessionID]; !ok {
		return nil
	}

	delete(records, sessionID)
	return f.writeAll(records)
}

// readAll returns the decoded record map, empty when the file doesn't exist.
func (f *FileStore) readAll() (map[string]persistedRecord, error) {
	data, err := os.ReadFile(f.filePath)
	if os.IsNotExist(err) {
		return make(map[string]persistedRecord), nil
	}
	if err != nil {
		return nil, err
	}

	records := make(map[string]persistedRecord)
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding fingerprint file %s: %w", f.filePath, err)
	}
	return records, nil
}

// writeAll atomically replaces the record file using temp file + rename and
// sets 0600 permissions (owner read/write only).
func (f *FileStore) writeAll(records map[string]persistedRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.filePath)
	tempFile, err := os.CreateTemp(dir, "*.tmp")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()
	// Cleanup deferred for all exit paths
	defer func() { _ = os.Remove(tempName) }()
	defer func() { _ = tempFile.Close() }()

	if _, err := tempFile.Write(data); err != nil {
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}

	if err := os.Rename(tempName, f.filePath); err != nil {
		return err
	}

	return os.Chmod(f.filePath, 0600)
}
