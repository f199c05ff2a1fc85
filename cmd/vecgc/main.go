// vecgc runs built-in scenarios against the vector runtime and its collector.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/vecgc/manifest"
	"github.com/chazu/vecgc/vm"
	"github.com/chazu/vecgc/vm/dump"
)

func main() {
	configDir := flag.String("config", ".", "Directory to search (upwards) for vecgc.toml")
	verbosity := flag.Int("v", -1, "Log verbosity (overrides vecgc.toml)")
	dumpPath := flag.String("dump", "", "Write a CBOR heap snapshot to this file when done")
	scenario := flag.String("scenario", "demo", "Scenario to run: demo, cycle, leak, unhandled")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vecgc [options]\n\n")
		fmt.Fprintf(os.Stderr, "Runs a scenario against the vector runtime and prints the collector tables.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  vecgc                          # Run the demo scenario\n")
		fmt.Fprintf(os.Stderr, "  vecgc -scenario cycle -v 2     # Cycle collection with debug logging\n")
		fmt.Fprintf(os.Stderr, "  vecgc -dump heap.cbor          # Save the final ledger\n")
	}
	flag.Parse()

	m, err := manifest.FindAndLoad(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if m == nil {
		m = manifest.Default()
	}

	level := m.Log.Verbosity
	if *verbosity >= 0 {
		level = *verbosity
	}
	var logPath *string
	if m.Log.File != "" {
		logPath = &m.Log.File
	}
	commonlog.Configure(level, logPath)

	opts, err := m.Options()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	machine := vm.NewVMWithOptions(opts)

	run, ok := scenarios[*scenario]
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown scenario %q\n", *scenario)
		flag.Usage()
		os.Exit(2)
	}
	run(machine)

	out := *dumpPath
	if out == "" {
		out = m.DumpPath()
	}
	if out != "" {
		snap := dump.Capture(machine)
		if err := dump.WriteFile(out, snap); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(snap.Summary())
	}

	machine.Shutdown()
	machine.PrintHeap(os.Stdout)
}
