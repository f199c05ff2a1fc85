package vm

import (
	"fmt"
	"strconv"
)

// ---------------------------------------------------------------------------
// ElementKind and StorageClass
// ---------------------------------------------------------------------------

// ElementKind is the element type of a vector. It never changes after the
// vector is created.
type ElementKind uint8

const (
	Byte ElementKind = iota
	Integer
	Double
	Reference
)

func (k ElementKind) String() string {
	switch k {
	case Byte:
		return "byte"
	case Integer:
		return "integer"
	case Double:
		return "double"
	case Reference:
		return "reference"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Size returns the accounted size of one element in bytes.
func (k ElementKind) Size() int {
	if k == Byte {
		return 1
	}
	return 8
}

// Valid reports whether k names a known element kind.
func (k ElementKind) Valid() bool {
	return k <= Reference
}

// StorageClass says who owns a vector's lifetime.
type StorageClass uint8

const (
	// Transient vectors are scope-bound and never seen by the collector.
	Transient StorageClass = iota
	// Managed vectors are tracked in the collector's ledger.
	Managed
)

func (s StorageClass) String() string {
	if s == Transient {
		return "transient"
	}
	return "managed"
}

// ---------------------------------------------------------------------------
// Value: one vector element
// ---------------------------------------------------------------------------

// Value is a tagged element: a byte, an integer, a double or a vector
// reference. The zero Value is a byte 0.
type Value struct {
	kind ElementKind
	num  int64
	dbl  float64
	ref  *Vector
}

// ByteValue wraps a byte.
func ByteValue(b byte) Value { return Value{kind: Byte, num: int64(b)} }

// IntValue wraps an integer.
func IntValue(i int64) Value { return Value{kind: Integer, num: i} }

// DoubleValue wraps a double.
func DoubleValue(d float64) Value { return Value{kind: Double, dbl: d} }

// RefValue wraps a vector reference; v may be nil.
func RefValue(v *Vector) Value { return Value{kind: Reference, ref: v} }

// Kind returns the element kind the value belongs to.
func (v Value) Kind() ElementKind { return v.kind }

// Byte returns the payload of a Byte value.
func (v Value) Byte() byte { return byte(v.num) }

// Int returns the payload of an Integer value.
func (v Value) Int() int64 { return v.num }

// Double returns the payload of a Double value.
func (v Value) Double() float64 { return v.dbl }

// Ref returns the payload of a Reference value.
func (v Value) Ref() *Vector { return v.ref }

// IsNull reports whether v is a nil reference.
func (v Value) IsNull() bool { return v.kind == Reference && v.ref == nil }

func (v Value) String() string {
	switch v.kind {
	case Byte:
		return strconv.Itoa(int(byte(v.num)))
	case Integer:
		return strconv.FormatInt(v.num, 10)
	case Double:
		return strconv.FormatFloat(v.dbl, 'g', -1, 64)
	case Reference:
		if v.ref == nil {
			return "null"
		}
		return fmt.Sprintf("->#%d", v.ref.id)
	}
	return "?"
}

// payload boxes the Go value stored for v's kind.
func (v Value) payload() any {
	switch v.kind {
	case Byte:
		return byte(v.num)
	case Integer:
		return v.num
	case Double:
		return v.dbl
	default:
		return v.ref
	}
}

func valueOf(x any) Value {
	switch x := x.(type) {
	case byte:
		return ByteValue(x)
	case int64:
		return IntValue(x)
	case float64:
		return DoubleValue(x)
	case *Vector:
		return RefValue(x)
	}
	panic(fmt.Sprintf("vm.valueOf: unsupported element %T", x))
}

// ---------------------------------------------------------------------------
// buffer: typed element storage
// ---------------------------------------------------------------------------

type element interface {
	byte | int64 | float64 | *Vector
}

// buffer is the data store of a vector. Each element kind has its own
// slab instantiation; buffers of different kinds never mix.
type buffer interface {
	capacity() int
	get(i int) Value
	set(i int, v Value)
	// move copies n elements from src to dst within the buffer; ranges may overlap.
	move(dst, src, n int)
	// copyFrom copies n elements of from starting at start into dst.
	copyFrom(dst int, from buffer, start, n int)
	zero(i int)
	// forEachRef calls fn for the first n elements of a reference buffer.
	forEachRef(n int, fn func(*Vector))
}

type slab[T element] struct {
	items []T
}

func newBuffer(kind ElementKind, n int) buffer {
	switch kind {
	case Byte:
		return &slab[byte]{items: make([]byte, n)}
	case Integer:
		return &slab[int64]{items: make([]int64, n)}
	case Double:
		return &slab[float64]{items: make([]float64, n)}
	default:
		return &slab[*Vector]{items: make([]*Vector, n)}
	}
}

func (s *slab[T]) capacity() int { return len(s.items) }

func (s *slab[T]) get(i int) Value { return valueOf(any(s.items[i])) }

func (s *slab[T]) set(i int, v Value) { s.items[i] = v.payload().(T) }

func (s *slab[T]) move(dst, src, n int) {
	copy(s.items[dst:dst+n], s.items[src:src+n])
}

func (s *slab[T]) copyFrom(dst int, from buffer, start, n int) {
	copy(s.items[dst:dst+n], from.(*slab[T]).items[start:start+n])
}

func (s *slab[T]) zero(i int) {
	var z T
	s.items[i] = z
}

func (s *slab[T]) forEachRef(n int, fn func(*Vector)) {
	refs, ok := any(s.items).([]*Vector)
	if !ok {
		return
	}
	for _, r := range refs[:n] {
		fn(r)
	}
}
