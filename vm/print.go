package vm

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
)

// ---------------------------------------------------------------------------
// Diagnostics: human-readable dumps, not a stable format
// ---------------------------------------------------------------------------

// maxPrintedElements caps how many elements FormatVector shows.
const maxPrintedElements = 16

// FormatVector renders v on one line, e.g. "#3 integer[3/8] managed (1, 2, 3)".
func FormatVector(v *Vector) string {
	if v == nil {
		return "<nil>"
	}
	if v.freed || v.data == nil {
		return fmt.Sprintf("#%d %s <freed>", v.id, v.kind)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "#%d %s[%d/%d] %s (", v.id, v.kind, v.length, v.Cap(), v.storage)
	for i := 0; i < v.length && i < maxPrintedElements; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(v.data.get(i).String())
	}
	if v.length > maxPrintedElements {
		fmt.Fprintf(&sb, ", ... %d more", v.length-maxPrintedElements)
	}
	sb.WriteString(")")
	if v.attrs != nil {
		fmt.Fprintf(&sb, " attrs=#%d", v.attrs.id)
	}
	return sb.String()
}

// PrintVector writes FormatVector(v) and a newline.
func PrintVector(w io.Writer, v *Vector) {
	fmt.Fprintln(w, FormatVector(v))
}

// PrintTable writes one line per entry of t, preceded by a summary line.
func PrintTable(w io.Writer, t *Table) {
	if t == nil || t.entries == nil {
		fmt.Fprintln(w, "table: <none>")
		return
	}
	var bytes int64
	for _, v := range t.entries[:t.length] {
		if v != nil && !v.freed {
			bytes += v.dataBytes() + vectorHeaderSize
		}
	}
	fmt.Fprintf(w, "table: %d/%d entries, %s referenced\n",
		t.length, len(t.entries), humanize.IBytes(uint64(bytes)))
	for i, v := range t.entries[:t.length] {
		fmt.Fprintf(w, "  [%d] %s\n", i, FormatVector(v))
	}
}

// PrintHeap writes the heap counters and collector table sizes.
func (vm *VM) PrintHeap(w io.Writer) {
	fmt.Fprintf(w, "vm %s\n", vm.id)
	fmt.Fprintf(w, "  heap: %s\n", vm.heap.Stats())
	if vm.heap.limit > 0 {
		fmt.Fprintf(w, "  limit: %s\n", humanize.IBytes(uint64(vm.heap.limit)))
	}
	gc := vm.gc
	fmt.Fprintf(w, "  ledger=%d roots=%d working=%d collections=%d\n",
		gc.ledger.Len(), gc.roots.Len(), gc.working.Len(), gc.collections)
}
