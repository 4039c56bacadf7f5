// Package filestore implements the backend contract on a plain directory
// tree: a 2-character fan-out under objects/ for content-addressed objects,
// and one marker file per operation head under op_heads/.
package filestore

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/strata-vcs/strata/pkg/object"
)

// Store is a file-backed Backend. Object payloads are zstd-compressed
// inside a "kind len\0" envelope; len is the uncompressed payload length.
type Store struct {
	root string
}

// New creates a Store rooted at the given directory. Subdirectories are
// created lazily on first write.
func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) objectPath(id object.ID) string {
	return filepath.Join(s.root, "objects", string(id[:2]), string(id[2:]))
}

// WriteObject stores a payload and returns its content id. Writes are
// atomic: data goes to a temp file and is renamed into place. Writing the
// same payload twice is a no-op returning the same id.
func (s *Store) WriteObject(ctx context.Context, kind object.Kind, payload []byte) (object.ID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := object.HashPayload(kind, payload)

	// Fast path: already exists.
	if _, err := os.Stat(s.objectPath(id)); err == nil {
		return id, nil
	}

	compressed, err := compress(payload)
	if err != nil {
		return "", fmt.Errorf("object write %s: compress: %w", id.Short(12), err)
	}
	raw := make([]byte, 0, len(compressed)+len(kind)+24)
	raw = append(raw, fmt.Sprintf("%s %d\x00", kind, len(payload))...)
	raw = append(raw, compressed...)

	dir := filepath.Join(s.root, "objects", string(id[:2]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("object write mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("object write tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("object write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("object write sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("object write close: %w", err)
	}
	if err := os.Rename(tmpName, s.objectPath(id)); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("object write rename: %w", err)
	}
	return id, nil
}

// ReadObject retrieves a payload by id, re-verifying the content hash. A
// mismatch between stored bytes and id is surfaced as object.CorruptError,
// never repaired in place.
func (s *Store) ReadObject(ctx context.Context, kind object.Kind, id object.ID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !id.Valid() {
		return nil, &object.NotFoundError{Kind: kind, ID: id}
	}
	raw, err := os.ReadFile(s.objectPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &object.NotFoundError{Kind: kind, ID: id}
		}
		return nil, fmt.Errorf("object read %s: %w", id.Short(12), err)
	}

	nulIdx := bytes.IndexByte(raw, 0)
	if nulIdx < 0 {
		return nil, &object.CorruptError{Kind: kind, ID: id, Reason: "missing envelope terminator"}
	}
	header := string(raw[:nulIdx])
	gotKind, lenStr, ok := strings.Cut(header, " ")
	if !ok {
		return nil, &object.CorruptError{Kind: kind, ID: id, Reason: fmt.Sprintf("invalid header %q", header)}
	}
	if object.Kind(gotKind) != kind {
		return nil, &object.CorruptError{Kind: kind, ID: id, Reason: fmt.Sprintf("stored as %q", gotKind)}
	}
	length, err := strconv.Atoi(lenStr)
	if err != nil {
		return nil, &object.CorruptError{Kind: kind, ID: id, Reason: fmt.Sprintf("invalid length %q", lenStr)}
	}

	payload, err := decompress(raw[nulIdx+1:])
	if err != nil {
		return nil, &object.CorruptError{Kind: kind, ID: id, Reason: fmt.Sprintf("decompress: %v", err)}
	}
	if len(payload) != length {
		return nil, &object.CorruptError{Kind: kind, ID: id,
			Reason: fmt.Sprintf("length mismatch: envelope %d, payload %d", length, len(payload))}
	}
	if object.HashPayload(kind, payload) != id {
		return nil, &object.CorruptError{Kind: kind, ID: id, Reason: "content hash mismatch"}
	}
	return payload, nil
}

// HasObject reports whether the store contains the object.
func (s *Store) HasObject(ctx context.Context, kind object.Kind, id object.ID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !id.Valid() {
		return false, nil
	}
	_, err := os.Stat(s.objectPath(id))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("object stat %s: %w", id.Short(12), err)
}

// Close is a no-op for the file store.
func (s *Store) Close() error { return nil }

func compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
