package tool

import (
	"fmt"
	"sort"

	"github.com/joss/toolgate/internal/store"
)

// Tool server categories.
const (
	CategoryFiles  = "files"
	CategorySearch = "search"
	CategoryShell  = "shell"
	CategoryTasks  = "tasks"
)

// Deps are the collaborators catalog handlers need.
type Deps struct {
	WorkDir string
	// Runs and Gate are required by the tasks category only.
	Runs store.RunWriter
	Gate Gate
	// SessionID is the default session for task tools.
	SessionID int64
}

var catalogs = map[string]func(Deps) ([]Handler, error){
	CategoryFiles: func(d Deps) ([]Handler, error) {
		return []Handler{NewRead(d.WorkDir), NewWrite(d.WorkDir), NewEdit(d.WorkDir), NewGlob(d.WorkDir), NewLS(d.WorkDir)}, nil
	},
	CategorySearch: func(d Deps) ([]Handler, error) {
		return []Handler{NewGrep(d.WorkDir), NewGlob(d.WorkDir)}, nil
	},
	CategoryShell: func(d Deps) ([]Handler, error) {
		return []Handler{NewBash(d.WorkDir)}, nil
	},
	CategoryTasks: func(d Deps) ([]Handler, error) {
		if d.Runs == nil || d.Gate == nil {
			return nil, fmt.Errorf("tasks catalog needs an execution store and a gate")
		}
		return []Handler{
			NewExecuteTask(d.Runs, d.SessionID),
			NewCompleteTask(d.Runs, d.SessionID),
			NewValidateAgent(d.Gate, d.SessionID),
		}, nil
	},
}

// Categories lists the known catalog names, sorted.
func Categories() []string {
	names := make([]string, 0, len(catalogs))
	for name := range catalogs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NeedsStore reports whether a category's handlers use the execution store.
func NeedsStore(category string) bool {
	return category == CategoryTasks
}

// Catalog builds the registry for one tool server category.
func Catalog(category string, deps Deps) (*Registry, error) {
	build, ok := catalogs[category]
	if !ok {
		return nil, fmt.Errorf("unknown tool category %q (known: %v)", category, Categories())
	}
	handlers, err := build(deps)
	if err != nil {
		return nil, err
	}
	return NewRegistryWith(handlers...)
}
