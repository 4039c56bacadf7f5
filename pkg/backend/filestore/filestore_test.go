package filestore

import (
	"context"
	"os"
	"testing"

	"github.com/strata-vcs/strata/pkg/backend"
	"github.com/strata-vcs/strata/pkg/backend/backendtest"
	"github.com/strata-vcs/strata/pkg/object"
)

var _ backend.Backend = (*Store)(nil)

func TestContract(t *testing.T) {
	backendtest.Run(t, func(t *testing.T) backend.Backend {
		return New(t.TempDir())
	})
}

func TestSingleStoredCopy(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	id, err := s.WriteObject(ctx, object.KindFile, []byte("dedup me"))
	if err != nil {
		t.Fatalf("WriteObject: %v", err)
	}
	info1, err := os.Stat(s.objectPath(id))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if _, err := s.WriteObject(ctx, object.KindFile, []byte("dedup me")); err != nil {
		t.Fatalf("second write: %v", err)
	}
	info2, err := os.Stat(s.objectPath(id))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if !info1.ModTime().Equal(info2.ModTime()) || info1.Size() != info2.Size() {
		t.Error("second identical write should not rewrite the object file")
	}
}

func TestCorruptionDetectedOnRead(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	id, err := s.WriteObject(ctx, object.KindFile, []byte("pristine content"))
	if err != nil {
		t.Fatalf("WriteObject: %v", err)
	}

	// Flip stored bytes behind the store's back.
	path := s.objectPath(id)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read object file: %v", err)
	}
	raw[len(raw)-1] ^= 0xff
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write object file: %v", err)
	}

	_, err = s.ReadObject(ctx, object.KindFile, id)
	if !object.IsCorrupt(err) {
		t.Errorf("want CorruptError, got %v", err)
	}
}

func TestTruncatedEnvelopeIsCorrupt(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	id, err := s.WriteObject(ctx, object.KindTree, []byte("tree payload"))
	if err != nil {
		t.Fatalf("WriteObject: %v", err)
	}
	if err := os.WriteFile(s.objectPath(id), []byte("garbage without nul"), 0o644); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if _, err := s.ReadObject(ctx, object.KindTree, id); !object.IsCorrupt(err) {
		t.Errorf("want CorruptError, got %v", err)
	}
}

func TestOpHeadsIgnoresStrayFiles(t *testing.T) {
	s := New(t.TempDir())
	ctx := context.Background()

	id := object.HashPayload(object.KindOperation, []byte("op"))
	if err := s.UpdateOpHeads(ctx, []object.ID{id}, nil); err != nil {
		t.Fatalf("UpdateOpHeads: %v", err)
	}
	if err := os.WriteFile(s.opHeadsDir()+"/.tmp-leftover", nil, 0o644); err != nil {
		t.Fatalf("write stray: %v", err)
	}
	heads, err := s.OpHeads(ctx)
	if err != nil {
		t.Fatalf("OpHeads: %v", err)
	}
	if len(heads) != 1 || heads[0] != id {
		t.Errorf("stray file leaked into heads: %v", heads)
	}
}
