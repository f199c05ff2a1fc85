// Package vm implements a runtime for tagged, growable vectors with an
// explicit-root mark and sweep collector.
//
// This package contains:
//   - Vectors of bytes, integers, doubles and vector references
//   - The capacity growth policy shared by vectors and tables
//   - Handle tables and the collector's ledger, roots and working set
//   - Protected scopes, the cleanup stack and a bounded backtrace
//   - Heap accounting with limits and fault injection
package vm
