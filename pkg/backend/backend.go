// Package backend defines the pluggable persistence contract the core runs
// on: content-addressed object storage plus operation-log persistence. Every
// implementation must satisfy the same semantics so the higher layers never
// know which physical medium they are talking to.
package backend

import (
	"context"

	"github.com/strata-vcs/strata/pkg/object"
)

// Backend is the full capability set consumed by the core.
//
// Object semantics: WriteObject is idempotent (identical payloads yield the
// same id and a single stored copy), ReadObject of an absent id returns
// object.NotFoundError, and ReadObject of bytes that fail the integrity
// check returns object.CorruptError. Writes must be durable before the
// enclosing transaction commits.
//
// Operation-log semantics: operations and views are stored like objects
// (content-addressed, immutable). OpHeads lists the current head operation
// ids; UpdateOpHeads atomically adds and removes head markers — adds land
// before removes so a crash can only widen the head set, never lose it.
type Backend interface {
	WriteObject(ctx context.Context, kind object.Kind, payload []byte) (object.ID, error)
	ReadObject(ctx context.Context, kind object.Kind, id object.ID) ([]byte, error)
	HasObject(ctx context.Context, kind object.Kind, id object.ID) (bool, error)

	OpHeads(ctx context.Context) ([]object.ID, error)
	UpdateOpHeads(ctx context.Context, add, remove []object.ID) error

	Close() error
}
