package index

import (
	"bufio"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/strata-vcs/strata/pkg/object"
)

const indexFormatVersion = 1

var indexMagic = [4]byte{0xff, 's', 'I', 'x'}

// Encode serializes the index in position order: a fixed header followed
// by one record per commit (raw 32-byte id, change id, generation, parent
// positions). Children are derived on load, not stored.
func (ix *Index) Encode(w io.Writer) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(indexMagic[:]); err != nil {
		return fmt.Errorf("write index header: %w", err)
	}
	if err := binary.Write(bw, binary.BigEndian, uint32(indexFormatVersion)); err != nil {
		return fmt.Errorf("write index header: %w", err)
	}
	if err := binary.Write(bw, binary.BigEndian, uint32(len(ix.entries))); err != nil {
		return fmt.Errorf("write index header: %w", err)
	}
	for pos, e := range ix.entries {
		raw, err := hex.DecodeString(string(e.id))
		if err != nil || len(raw) != 32 {
			return fmt.Errorf("write index entry %d: malformed id %q", pos, e.id)
		}
		if _, err := bw.Write(raw); err != nil {
			return fmt.Errorf("write index entry %d: %w", pos, err)
		}
		if len(e.change) > 255 {
			return fmt.Errorf("write index entry %d: change id too long", pos)
		}
		if err := bw.WriteByte(byte(len(e.change))); err != nil {
			return fmt.Errorf("write index entry %d: %w", pos, err)
		}
		if _, err := bw.WriteString(string(e.change)); err != nil {
			return fmt.Errorf("write index entry %d: %w", pos, err)
		}
		if err := binary.Write(bw, binary.BigEndian, e.generation); err != nil {
			return fmt.Errorf("write index entry %d: %w", pos, err)
		}
		if err := binary.Write(bw, binary.BigEndian, uint32(len(e.parents))); err != nil {
			return fmt.Errorf("write index entry %d: %w", pos, err)
		}
		for _, p := range e.parents {
			if err := binary.Write(bw, binary.BigEndian, uint32(p)); err != nil {
				return fmt.Errorf("write index entry %d: %w", pos, err)
			}
		}
	}
	return bw.Flush()
}

// Decode replaces the index contents from a serialized form. Structural
// problems (bad magic, forward parent references) fail the load; callers
// fall back to Rebuild since the index is purely derived.
func (ix *Index) Decode(r io.Reader) error {
	br := bufio.NewReader(r)

	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return fmt.Errorf("read index header: %w", err)
	}
	if magic != indexMagic {
		return fmt.Errorf("read index: bad magic %x", magic)
	}
	var version, count uint32
	if err := binary.Read(br, binary.BigEndian, &version); err != nil {
		return fmt.Errorf("read index header: %w", err)
	}
	if version != indexFormatVersion {
		return fmt.Errorf("read index: unsupported version %d", version)
	}
	if err := binary.Read(br, binary.BigEndian, &count); err != nil {
		return fmt.Errorf("read index header: %w", err)
	}

	entries := make([]entry, 0, count)
	byID := make(map[object.ID]Position, count)
	for pos := uint32(0); pos < count; pos++ {
		var raw [32]byte
		if _, err := io.ReadFull(br, raw[:]); err != nil {
			return fmt.Errorf("read index entry %d: %w", pos, err)
		}
		changeLen, err := br.ReadByte()
		if err != nil {
			return fmt.Errorf("read index entry %d: %w", pos, err)
		}
		change := make([]byte, changeLen)
		if _, err := io.ReadFull(br, change); err != nil {
			return fmt.Errorf("read index entry %d: %w", pos, err)
		}
		var generation uint64
		if err := binary.Read(br, binary.BigEndian, &generation); err != nil {
			return fmt.Errorf("read index entry %d: %w", pos, err)
		}
		var nparents uint32
		if err := binary.Read(br, binary.BigEndian, &nparents); err != nil {
			return fmt.Errorf("read index entry %d: %w", pos, err)
		}
		e := entry{
			id:         object.ID(hex.EncodeToString(raw[:])),
			change:     object.ChangeID(change),
			generation: generation,
		}
		for i := uint32(0); i < nparents; i++ {
			var p uint32
			if err := binary.Read(br, binary.BigEndian, &p); err != nil {
				return fmt.Errorf("read index entry %d: %w", pos, err)
			}
			if p >= pos {
				return fmt.Errorf("read index entry %d: parent %d is not topologically earlier", pos, p)
			}
			e.parents = append(e.parents, Position(p))
		}
		byID[e.id] = Position(pos)
		entries = append(entries, e)
	}

	// Derive child adjacency.
	for pos := range entries {
		for _, p := range entries[pos].parents {
			entries[p].children = append(entries[p].children, Position(pos))
		}
	}

	ix.mu.Lock()
	ix.entries = entries
	ix.byID = byID
	ix.mu.Unlock()
	return nil
}

// SaveFile atomically writes the index next to the store.
func (ix *Index) SaveFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("save index mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".idx-tmp-*")
	if err != nil {
		return fmt.Errorf("save index tmpfile: %w", err)
	}
	tmpName := tmp.Name()
	if err := ix.Encode(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("save index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save index close: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save index rename: %w", err)
	}
	return nil
}

// LoadFile reads a previously saved index. A missing file is not an error;
// it simply leaves the index empty for incremental rebuilding.
func (ix *Index) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("load index: %w", err)
	}
	defer f.Close()
	if err := ix.Decode(f); err != nil {
		return fmt.Errorf("load index %s: %w", path, err)
	}
	return nil
}
