package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/treasury-tracker/internal/models"
	"github.com/treasury-tracker/internal/types"
)

// FileStore persists the snapshot history as a line-delimited JSON append-only
// log: one snapshot per line, appended with O_APPEND so a write is a single
// whole-line frame. A coin-tag index over line offsets is rebuilt on open and
// maintained incrementally on append, so Latest never rescans the log.
//
// The log format tolerates concurrent appenders at the file level, but the
// in-memory index assumes this process is the only writer. Cross-process
// coordination needs an external lock or the Postgres backend.
type FileStore struct {
	path string

	mu     sync.Mutex
	writer *os.File // lazily opened on first append
	size   int64
	index  map[types.CoinTag][]int64 // coin tag -> line start offsets, append order
	order  []int64                   // all line start offsets, append order
}

// NewFileStore opens a file-backed snapshot store at path. The store file is
// only created on first append; a missing file is an empty history. An
// existing file that cannot be decoded fails with *types.StoreCorruptError.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:  path,
		index: make(map[types.CoinTag][]int64),
	}

	if err := s.rebuildIndex(); err != nil {
		return nil, err
	}

	return s, nil
}

// rebuildIndex scans the existing log and records line offsets per coin tag
func (s *FileStore) rebuildIndex() error {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening snapshot log: %w", err)
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	var offset int64

	for lineNo := 1; ; lineNo++ {
		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			if len(line) > 0 {
				// A torn trailing line means a write never completed
				return s.corrupt(fmt.Errorf("line %d: truncated record", lineNo))
			}
			break
		}
		if err != nil {
			return fmt.Errorf("reading snapshot log: %w", err)
		}

		var snap models.Snapshot
		if err := json.Unmarshal(bytes.TrimSpace(line), &snap); err != nil {
			return s.corrupt(fmt.Errorf("line %d: %w", lineNo, err))
		}

		s.index[snap.Coin] = append(s.index[snap.Coin], offset)
		s.order = append(s.order, offset)
		offset += int64(len(line))
	}

	s.size = offset
	return nil
}

// Append wraps rows into a snapshot and writes it as one log line
func (s *FileStore) Append(ctx context.Context, rows []types.Row, coin types.CoinTag) (*models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := models.NewSnapshot(rows, coin)

	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer == nil {
		if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
			return nil, fmt.Errorf("creating snapshot directory: %w", err)
		}
		w, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening snapshot log for append: %w", err)
		}
		s.writer = w
	}

	if _, err := s.writer.Write(data); err != nil {
		return nil, fmt.Errorf("appending snapshot: %w", err)
	}
	if err := s.writer.Sync(); err != nil {
		return nil, fmt.Errorf("syncing snapshot log: %w", err)
	}

	offset := s.size
	s.size += int64(len(data))
	s.index[coin] = append(s.index[coin], offset)
	s.order = append(s.order, offset)

	return snap, nil
}

// LoadAll returns the full history in append order
func (s *FileStore) LoadAll(ctx context.Context) ([]*models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []*models.Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot log: %w", err)
	}

	snapshots := make([]*models.Snapshot, 0, len(s.order))
	for lineNo, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		var snap models.Snapshot
		if err := json.Unmarshal(line, &snap); err != nil {
			return nil, s.corrupt(fmt.Errorf("line %d: %w", lineNo+1, err))
		}
		snapshots = append(snapshots, &snap)
	}

	return snapshots, nil
}

// Latest returns the last-appended snapshot for a coin tag, or the last
// snapshot overall when the tag is empty. Recency is insertion order.
func (s *FileStore) Latest(ctx context.Context, coin types.CoinTag) (*models.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	offsets := s.order
	if coin != "" {
		offsets = s.index[coin]
	}
	if len(offsets) == 0 {
		return nil, nil
	}

	return s.readAt(offsets[len(offsets)-1])
}

// readAt decodes the log line starting at the given offset
func (s *FileStore) readAt(offset int64) (*models.Snapshot, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot log: %w", err)
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking snapshot log: %w", err)
	}

	line, err := bufio.NewReader(f).ReadBytes('\n')
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("reading snapshot log: %w", err)
	}

	var snap models.Snapshot
	if err := json.Unmarshal(bytes.TrimSpace(line), &snap); err != nil {
		return nil, s.corrupt(err)
	}

	return &snap, nil
}

// Close releases the append handle
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer != nil {
		err := s.writer.Close()
		s.writer = nil
		return err
	}
	return nil
}

// Path returns the log file location
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) corrupt(cause error) error {
	return &types.StoreCorruptError{Source: s.path, Cause: cause}
}
