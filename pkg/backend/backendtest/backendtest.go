// Package backendtest runs the shared semantic contract every backend must
// satisfy. Backend packages call Run from their own tests.
package backendtest

import (
	"context"
	"testing"

	"github.com/strata-vcs/strata/pkg/backend"
	"github.com/strata-vcs/strata/pkg/object"
)

// Run exercises the backend contract against a fresh store produced by open.
func Run(t *testing.T, open func(t *testing.T) backend.Backend) {
	t.Helper()

	t.Run("WriteReadRoundTrip", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		data := []byte("hello world")
		id, err := s.WriteObject(ctx, object.KindFile, data)
		if err != nil {
			t.Fatalf("WriteObject: %v", err)
		}
		got, err := s.ReadObject(ctx, object.KindFile, id)
		if err != nil {
			t.Fatalf("ReadObject: %v", err)
		}
		if string(got) != string(data) {
			t.Errorf("payload mismatch: got %q, want %q", got, data)
		}
	})

	t.Run("EmptyPayloadRoundTrip", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		// The empty view serializes to zero bytes; it must land and read
		// back like any other object.
		id, err := s.WriteObject(ctx, object.KindView, nil)
		if err != nil {
			t.Fatalf("WriteObject: %v", err)
		}
		ok, err := s.HasObject(ctx, object.KindView, id)
		if err != nil {
			t.Fatalf("HasObject: %v", err)
		}
		if !ok {
			t.Fatal("empty payload was not stored")
		}
		got, err := s.ReadObject(ctx, object.KindView, id)
		if err != nil {
			t.Fatalf("ReadObject: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("payload = %q, want empty", got)
		}
	})

	t.Run("IdempotentWrites", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		data := []byte("same bytes")
		id1, err := s.WriteObject(ctx, object.KindFile, data)
		if err != nil {
			t.Fatalf("first write: %v", err)
		}
		id2, err := s.WriteObject(ctx, object.KindFile, data)
		if err != nil {
			t.Fatalf("second write: %v", err)
		}
		if id1 != id2 {
			t.Errorf("idempotent write returned different ids: %s vs %s", id1, id2)
		}
	})

	t.Run("KindsAreDisjoint", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		data := []byte("payload")
		fileID, err := s.WriteObject(ctx, object.KindFile, data)
		if err != nil {
			t.Fatalf("WriteObject: %v", err)
		}
		treeID, err := s.WriteObject(ctx, object.KindTree, data)
		if err != nil {
			t.Fatalf("WriteObject: %v", err)
		}
		if fileID == treeID {
			t.Error("same payload under different kinds must not collide")
		}
		if _, err := s.ReadObject(ctx, object.KindTree, fileID); !object.IsNotFound(err) && !object.IsCorrupt(err) {
			t.Errorf("cross-kind read should fail, got %v", err)
		}
	})

	t.Run("ReadAbsentIsNotFound", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		absent := object.HashPayload(object.KindCommit, []byte("never written"))
		_, err := s.ReadObject(ctx, object.KindCommit, absent)
		if !object.IsNotFound(err) {
			t.Errorf("want NotFoundError, got %v", err)
		}
		ok, err := s.HasObject(ctx, object.KindCommit, absent)
		if err != nil {
			t.Fatalf("HasObject: %v", err)
		}
		if ok {
			t.Error("HasObject reported an absent object")
		}
	})

	t.Run("HasObject", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		id, err := s.WriteObject(ctx, object.KindTree, []byte("tree bytes"))
		if err != nil {
			t.Fatalf("WriteObject: %v", err)
		}
		ok, err := s.HasObject(ctx, object.KindTree, id)
		if err != nil {
			t.Fatalf("HasObject: %v", err)
		}
		if !ok {
			t.Error("HasObject missed a written object")
		}
	})

	t.Run("OpHeads", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		heads, err := s.OpHeads(ctx)
		if err != nil {
			t.Fatalf("OpHeads: %v", err)
		}
		if len(heads) != 0 {
			t.Fatalf("fresh store has heads: %v", heads)
		}

		a := object.HashPayload(object.KindOperation, []byte("op a"))
		b := object.HashPayload(object.KindOperation, []byte("op b"))
		if err := s.UpdateOpHeads(ctx, []object.ID{a}, nil); err != nil {
			t.Fatalf("UpdateOpHeads add a: %v", err)
		}
		if err := s.UpdateOpHeads(ctx, []object.ID{b}, nil); err != nil {
			t.Fatalf("UpdateOpHeads add b: %v", err)
		}
		heads, err = s.OpHeads(ctx)
		if err != nil {
			t.Fatalf("OpHeads: %v", err)
		}
		if len(heads) != 2 {
			t.Fatalf("want 2 heads, got %v", heads)
		}

		// Swap both for a single successor.
		c := object.HashPayload(object.KindOperation, []byte("op c"))
		if err := s.UpdateOpHeads(ctx, []object.ID{c}, []object.ID{a, b}); err != nil {
			t.Fatalf("UpdateOpHeads swap: %v", err)
		}
		heads, err = s.OpHeads(ctx)
		if err != nil {
			t.Fatalf("OpHeads: %v", err)
		}
		if len(heads) != 1 || heads[0] != c {
			t.Fatalf("want [%s], got %v", c.Short(12), heads)
		}

		// Removing an already-removed head is harmless.
		if err := s.UpdateOpHeads(ctx, nil, []object.ID{a}); err != nil {
			t.Fatalf("UpdateOpHeads redundant remove: %v", err)
		}
	})

	t.Run("CancelledContext", func(t *testing.T) {
		s := open(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := s.WriteObject(ctx, object.KindFile, []byte("x")); err == nil {
			t.Error("WriteObject with cancelled context should fail")
		}
	})
}
