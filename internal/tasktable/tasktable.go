// Package tasktable implements the load_task_table external collaborator
// (spec.md §6): resolving the linked image's task table section into a
// list of (task name, routine name, declared stack size) triples.
//
// The original tool reads this directly out of the compiled binary's ABI
// via a loaded shared object; that has no dependency-free Go equivalent,
// and the spec itself treats this collaborator as opaque, specified only
// by the shape of data it yields (spec.md SPEC_FULL.md §4.9). This package
// reads the equivalent data from a JSON sidecar file instead, keeping the
// loader boundary testable without a compiled blob.
package tasktable

import (
	"encoding/json"
	"fmt"
	"os"

	"firmstack/internal/errs"
	"firmstack/internal/model"
)

// Entry is one row of the task table as loaded from the sidecar, before
// RoutineName has been resolved against the disassembled function set.
type Entry struct {
	Name          string `json:"name"`
	RoutineName   string `json:"routine"`
	DeclaredStack uint64 `json:"stack_size"`
}

// Loader resolves a task table section name to its entries.
type Loader interface {
	Load(section string) ([]Entry, error)
}

// JSONLoader reads a JSON array of Entry from Path. The section argument
// (the --section RO/RW value) is not used: every entry in the file is
// returned whichever section is requested.
type JSONLoader struct {
	Path string
}

func (l JSONLoader) Load(section string) ([]Entry, error) {
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, errs.New(errs.TaskTableLoad, fmt.Errorf("read %s: %w", l.Path, err))
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errs.New(errs.TaskTableLoad, fmt.Errorf("parse %s: %w", l.Path, err))
	}
	return entries, nil
}

// Resolve turns loaded entries into model.Task values, looking up each
// entry's routine by name in byName. A task whose routine cannot be found
// is a fatal TaskTableLoad error (spec.md §7: an unresolvable task entry
// means the analysis cannot produce a bound for it at all).
func Resolve(entries []Entry, byName map[string]*model.Function) ([]*model.Task, error) {
	tasks := make([]*model.Task, 0, len(entries))
	for _, e := range entries {
		fn, ok := byName[e.RoutineName]
		if !ok {
			return nil, errs.New(errs.TaskTableLoad, fmt.Errorf("task %q: routine %q not found", e.Name, e.RoutineName))
		}
		tasks = append(tasks, &model.Task{
			Name:          e.Name,
			RoutineName:   e.RoutineName,
			DeclaredStack: e.DeclaredStack,
			Routine:       fn,
		})
	}
	return tasks, nil
}
