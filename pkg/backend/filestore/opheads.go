package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/strata-vcs/strata/pkg/object"
)

func (s *Store) opHeadsDir() string {
	return filepath.Join(s.root, "op_heads")
}

// OpHeads lists current operation heads, sorted by id for determinism.
func (s *Store) OpHeads(ctx context.Context) ([]object.ID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.opHeadsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list op heads: %w", err)
	}
	heads := make([]object.ID, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id := object.ID(e.Name())
		if !id.Valid() {
			// Leftover temp files and the like are not heads.
			continue
		}
		heads = append(heads, id)
	}
	sort.Slice(heads, func(i, j int) bool { return heads[i] < heads[j] })
	return heads, nil
}

// UpdateOpHeads adds marker files for new heads, then removes superseded
// ones. Ordering matters: if the process dies between the two steps the log
// shows extra heads, which reconciliation merges, rather than none.
func (s *Store) UpdateOpHeads(ctx context.Context, add, remove []object.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := s.opHeadsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("op heads mkdir: %w", err)
	}
	for _, id := range add {
		f, err := os.OpenFile(filepath.Join(dir, string(id)), os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("add op head %s: %w", id.Short(12), err)
		}
		f.Close()
	}
	for _, id := range remove {
		if err := os.Remove(filepath.Join(dir, string(id))); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove op head %s: %w", id.Short(12), err)
		}
	}
	return nil
}
