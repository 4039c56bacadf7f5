package object

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid"
	"golang.org/x/crypto/blake2b"
)

// ID is a 64-character hex-encoded blake2b-256 digest of an object's
// canonical serialized bytes. It is the only handle to stored objects.
type ID string

// Kind identifies what an ID refers to in the store.
type Kind string

const (
	KindFile      Kind = "file"
	KindTree      Kind = "tree"
	KindCommit    Kind = "commit"
	KindView      Kind = "view"
	KindOperation Kind = "operation"
)

// IDHexLen is the length of a fully spelled-out ID.
const IDHexLen = 64

// HashPayload computes the blake2b-256 of the envelope "kind len\0payload"
// and returns it as a lowercase hex ID. Hashing the envelope rather than the
// bare payload keeps ids of different kinds disjoint.
func HashPayload(kind Kind, payload []byte) ID {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only fails for a bad key; nil key never fails.
		panic(err)
	}
	fmt.Fprintf(h, "%s %d\x00", kind, len(payload))
	h.Write(payload)
	return ID(hex.EncodeToString(h.Sum(nil)))
}

// Valid reports whether the id is a well-formed full-length hex digest.
func (id ID) Valid() bool {
	if len(id) != IDHexLen {
		return false
	}
	_, err := hex.DecodeString(string(id))
	return err == nil
}

// Short returns a truncated prefix for display.
func (id ID) Short(n int) string {
	if n > len(id) {
		n = len(id)
	}
	return string(id[:n])
}

// IsHexPrefix reports whether s could be an abbreviated ID: non-empty,
// all lowercase hex, and no longer than a full id.
func IsHexPrefix(s string) bool {
	if s == "" || len(s) > IDHexLen {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// ChangeID is the stable logical identity of a commit, minted once at
// creation and preserved verbatim across amendment and rebase. It is a
// ULID, so ids sort roughly by creation time.
type ChangeID string

// NewChangeID mints a fresh ChangeID.
func NewChangeID() ChangeID {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return ChangeID(strings.ToLower(id.String()))
}

// ValidChangeID reports whether s parses as a ULID.
func ValidChangeID(s string) bool {
	_, err := ulid.Parse(strings.ToUpper(s))
	return err == nil
}
