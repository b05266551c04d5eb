// Package gobsource stores blocks and traces as gob files, one per block, so
// that traces fetched once can be compiled many times.
package gobsource

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/jsign/trace-access-list/source"
)

const ext = ".gob"

// Source reads and writes <dir>/<number>.gob files.
type Source struct {
	dir string
}

var _ source.Source = (*Source)(nil)

func New(dir string) *Source {
	return &Source{dir: dir}
}

func (s *Source) path(number uint64) string {
	return filepath.Join(s.dir, strconv.FormatUint(number, 10)+ext)
}

func (s *Source) Block(_ context.Context, number uint64) (*source.Block, error) {
	blockBytes, err := os.ReadFile(s.path(number))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %d", source.ErrBlockNotFound, number)
	}
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	var block source.Block
	if err := gob.NewDecoder(bytes.NewReader(blockBytes)).Decode(&block); err != nil {
		return nil, fmt.Errorf("error decoding file: %w", err)
	}
	return &block, nil
}

// Store writes block, replacing any previous file for the same number.
func (s *Source) Store(block *source.Block) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(block); err != nil {
		return fmt.Errorf("error encoding block %d: %w", block.Number, err)
	}
	tmp, err := os.CreateTemp(s.dir, "block-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path(block.Number))
}

// Numbers lists the stored block numbers in ascending order.
func (s *Source) Numbers() ([]uint64, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var numbers []uint64
	for _, dirEntry := range dirEntries {
		name := dirEntry.Name()
		if dirEntry.IsDir() || !strings.HasSuffix(name, ext) {
			continue
		}
		n, err := strconv.ParseUint(strings.TrimSuffix(name, ext), 10, 64)
		if err != nil {
			continue
		}
		numbers = append(numbers, n)
	}
	slices.Sort(numbers)
	return numbers, nil
}
