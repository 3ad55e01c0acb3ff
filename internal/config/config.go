// Package config parses and validates the command-line surface described
// in spec.md §6, mirroring the teacher's per-command flag.FlagSet idiom.
package config

import (
	"errors"
	"flag"
	"fmt"
)

// Section is which task-table section to analyze.
type Section string

const (
	SectionRO Section = "RO"
	SectionRW Section = "RW"
)

// Config holds one validated invocation of the analyzer.
type Config struct {
	ELFPath         string
	ExportTaskInfo  string // path to the task-table sidecar
	Section         Section
	ObjdumpPath     string
	Addr2linePath   string
	AnnotationPath  string // optional
	Native          bool
	GraphPath       string // optional
}

// Parse builds a Config from args (excluding the program name), matching
// the teacher's pattern of one flag.FlagSet per invocation.
func Parse(args []string) (Config, error) {
	fs := flag.NewFlagSet("firmstack", flag.ContinueOnError)

	exportTaskInfo := fs.String("export_taskinfo", "", "path to the exported task table (required)")
	section := fs.String("section", "", "task table section: RO or RW (required; the JSON task table loader returns the same entries for either)")
	objdump := fs.String("objdump", "", "path to the objdump binary (default: objdump on PATH)")
	addr2line := fs.String("addr2line", "", "path to the addr2line binary (default: addr2line on PATH)")
	annotation := fs.String("annotation", "", "path to the YAML annotation file (optional)")
	native := fs.Bool("native", false, "use the built-in ARM decoder instead of shelling out to objdump/addr2line")
	graph := fs.String("graph", "", "write a Graphviz DOT rendering of each task's stack path to this path (optional)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if fs.NArg() != 1 {
		return Config{}, errors.New("config: exactly one ELF path argument is required")
	}
	if *exportTaskInfo == "" {
		return Config{}, errors.New("config: --export_taskinfo is required")
	}

	var sec Section
	switch *section {
	case "RO":
		sec = SectionRO
	case "RW":
		sec = SectionRW
	default:
		return Config{}, fmt.Errorf("config: --section must be RO or RW, got %q", *section)
	}

	return Config{
		ELFPath:        fs.Arg(0),
		ExportTaskInfo: *exportTaskInfo,
		Section:        sec,
		ObjdumpPath:    *objdump,
		Addr2linePath:  *addr2line,
		AnnotationPath: *annotation,
		Native:         *native,
		GraphPath:      *graph,
	}, nil
}
