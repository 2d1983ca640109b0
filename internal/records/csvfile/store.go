// File: internal/records/csvfile/store.go
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/mitchellh/go-homedir"
	"github.com/xkilldash9x/formpilot/internal/records"
	"go.uber.org/zap"
)

// Store keeps a local CSV file as the record store. Every WriteCell rewrites
// the whole file through a temp file and rename, so a crash never leaves a
// half-written table behind. The file is written back from the lines as they
// were read; only the written cell changes.
type Store struct {
	path   string
	mu     sync.Mutex
	table  *records.Table
	header []string
	lines  [][]string
	logger *zap.Logger
}

// New binds the store to path. The file is read lazily by ReadAll.
func New(path string, logger *zap.Logger) (*Store, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand csv path: %w", err)
	}
	if expanded == "" {
		return nil, errors.New("csv path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: expanded, logger: logger.Named("csvfile")}, nil
}

// ReadAll parses the file. The first line is the header.
func (s *Store) ReadAll(ctx context.Context) (*records.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var header []string
	var rows [][]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
		}
		if header == nil {
			header = line
			continue
		}
		rows = append(rows, line)
	}

	s.header, s.lines = header, rows
	s.table = records.NewTable(header, rows)
	s.logger.Debug("CSV loaded", zap.String("path", s.path), zap.Int("rows", len(rows)))
	return s.table.Clone(), nil
}

// WriteCell updates one cell and rewrites the file synchronously.
func (s *Store) WriteCell(ctx context.Context, row, col int, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.table == nil {
		return errors.New("csvfile: WriteCell called before ReadAll")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.table.SetCell(row, col, value); err != nil {
		return err
	}
	line := s.lines[row]
	for len(line) <= col {
		line = append(line, "")
	}
	line[col] = value
	s.lines[row] = line
	return s.flush()
}

func (s *Store) flush() error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".formpilot-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if s.header != nil {
		if err := w.Write(s.header); err != nil {
			tmp.Close()
			return err
		}
	}
	if err := w.WriteAll(s.lines); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}
