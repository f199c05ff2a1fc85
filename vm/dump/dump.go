// Package dump captures the collector's view of a VM as a snapshot that can
// be encoded to CBOR, written to disk and analysed offline.
package dump

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/chazu/vecgc/vm"
)

// Version is the snapshot format version written by this package.
const Version = 1

// Record describes one tracked vector.
type Record struct {
	ID       uint64   `cbor:"1,keyasint"`
	Kind     string   `cbor:"2,keyasint"`
	Length   int      `cbor:"3,keyasint"`
	Capacity int      `cbor:"4,keyasint"`
	Root     bool     `cbor:"5,keyasint,omitempty"`
	Refs     []uint64 `cbor:"6,keyasint,omitempty"` // 0 marks a null reference
	Attrs    uint64   `cbor:"7,keyasint,omitempty"`
	Bytes    int64    `cbor:"8,keyasint"` // accounted data size
}

// Snapshot is the ledger of a VM at one moment.
type Snapshot struct {
	Version     int       `cbor:"1,keyasint"`
	ID          string    `cbor:"2,keyasint"`
	VM          string    `cbor:"3,keyasint"`
	Taken       time.Time `cbor:"4,keyasint"`
	Allocs      uint64    `cbor:"5,keyasint"`
	Frees       uint64    `cbor:"6,keyasint"`
	LiveBytes   int64     `cbor:"7,keyasint"`
	Collections uint64    `cbor:"8,keyasint"`
	Vectors     []Record  `cbor:"9,keyasint"`
}

// Capture records every vector in m's ledger. An uninitialized collector
// yields an empty snapshot.
func Capture(m *vm.VM) *Snapshot {
	stats := m.Heap().Stats()
	s := &Snapshot{
		Version:     Version,
		ID:          uuid.New().String(),
		VM:          m.ID().String(),
		Taken:       time.Now().UTC(),
		Allocs:      stats.Allocs,
		Frees:       stats.Frees,
		LiveBytes:   stats.LiveBytes,
		Collections: m.GC().Collections(),
	}
	for _, v := range m.GC().Ledger().Entries() {
		s.Vectors = append(s.Vectors, capture(m, v))
	}
	return s
}

func capture(m *vm.VM, v *vm.Vector) Record {
	r := Record{
		ID:       v.ID(),
		Kind:     v.Kind().String(),
		Length:   v.Len(),
		Capacity: v.Cap(),
		Root:     m.GC().IsRoot(v),
		Bytes:    int64(v.Cap()) * int64(v.Kind().Size()),
	}
	if a := v.Attributes(); a != nil {
		r.Attrs = a.ID()
	}
	if v.Kind() == vm.Reference && !v.Freed() {
		r.Refs = make([]uint64, v.Len())
		for i := range r.Refs {
			if ref := m.GetRef(v, i); ref != nil {
				r.Refs[i] = ref.ID()
			}
		}
	}
	return r
}

// Lookup returns the record with the given id.
func (s *Snapshot) Lookup(id uint64) (Record, bool) {
	for _, r := range s.Vectors {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}

// Roots returns the ids of the declared roots in ledger order.
func (s *Snapshot) Roots() []uint64 {
	var roots []uint64
	for _, r := range s.Vectors {
		if r.Root {
			roots = append(roots, r.ID)
		}
	}
	return roots
}

// Closure returns the ids reachable from the roots, sorted. Only vectors
// present in the snapshot are followed.
func (s *Snapshot) Closure() []uint64 {
	byID := make(map[uint64]Record, len(s.Vectors))
	for _, r := range s.Vectors {
		byID[r.ID] = r
	}
	seen := make(map[uint64]struct{})
	queue := s.Roots()
	for _, id := range queue {
		seen[id] = struct{}{}
	}
	for len(queue) > 0 {
		r, ok := byID[queue[0]]
		queue = queue[1:]
		if !ok {
			continue
		}
		next := append([]uint64(nil), r.Refs...)
		if r.Attrs != 0 {
			next = append(next, r.Attrs)
		}
		for _, id := range next {
			if _, dup := seen[id]; id == 0 || dup {
				continue
			}
			if _, tracked := byID[id]; !tracked {
				continue
			}
			seen[id] = struct{}{}
			queue = append(queue, id)
		}
	}
	out := make([]uint64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Summary renders a short human-readable description.
func (s *Snapshot) Summary() string {
	var data int64
	kinds := map[string]int{}
	for _, r := range s.Vectors {
		data += r.Bytes
		kinds[r.Kind]++
	}
	names := make([]string, 0, len(kinds))
	for k := range kinds {
		names = append(names, k)
	}
	sort.Strings(names)
	var sb strings.Builder
	fmt.Fprintf(&sb, "snapshot %s of vm %s: %d vectors, %s data, %d roots",
		s.ID, s.VM, len(s.Vectors), humanize.IBytes(uint64(data)), len(s.Roots()))
	for _, k := range names {
		fmt.Fprintf(&sb, ", %s=%d", k, kinds[k])
	}
	return sb.String()
}

// WriteFile encodes s and writes it to path.
func WriteFile(path string, s *Snapshot) error {
	data, err := Marshal(s)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "dump: write %s", path)
	}
	return nil
}

// ReadFile reads and decodes a snapshot written by WriteFile.
func ReadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "dump: read %s", path)
	}
	return Unmarshal(data)
}

