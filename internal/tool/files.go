package tool

import (
	"context"
	"fmt"
	"strings"
)

// Read returns numbered lines of a file.
type Read struct {
	workDir string
}

func NewRead(workDir string) *Read { return &Read{workDir: workDir} }

func (r *Read) Info() Definition {
	return Definition{
		Name:        "Read",
		Description: "Read a text file and return its lines prefixed with line numbers.",
		InputSchema: objectSchema(map[string]any{
			"file_path": property("string", "Path to the file, absolute or relative to the working directory"),
			"offset":    property("integer", "Line number to start from (1-indexed)"),
			"limit":     property("integer", "Maximum number of lines to return"),
		}, "file_path"),
	}
}

func (r *Read) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	raw := stringArg(args, "file_path")
	if raw == "" {
		return nil, fmt.Errorf("file_path: %w", ErrInvalidArgs)
	}
	path := resolvePath(r.workDir, raw)

	offset, _ := intArg(args, "offset")
	limit := defaultLimit
	if l, ok := intArg(args, "limit"); ok && l > 0 {
		limit = l
	}

	title := fmt.Sprintf("Read %s", path)
	content, n, err := readLines(path, offset, limit)
	if err != nil {
		return &Result{Title: title, Output: err.Error(), Error: err}, nil
	}

	return &Result{
		Title:  title,
		Output: content,
		Metadata: map[string]any{
			"path":  path,
			"lines": n,
		},
	}, nil
}

// Write creates or overwrites a file.
type Write struct {
	workDir string
}

func NewWrite(workDir string) *Write { return &Write{workDir: workDir} }

func (w *Write) Info() Definition {
	return Definition{
		Name:        "Write",
		Description: "Write content to a file, creating parent directories and overwriting any existing file.",
		InputSchema: objectSchema(map[string]any{
			"file_path": property("string", "Path to the file, absolute or relative to the working directory"),
			"content":   property("string", "Content to write"),
		}, "file_path", "content"),
	}
}

func (w *Write) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	raw := stringArg(args, "file_path")
	if raw == "" {
		return nil, fmt.Errorf("file_path: %w", ErrInvalidArgs)
	}
	path := resolvePath(w.workDir, raw)
	content := stringArg(args, "content")

	title := fmt.Sprintf("Write %s", path)
	if err := writeFile(path, content); err != nil {
		return &Result{Title: title, Output: err.Error(), Error: err}, nil
	}

	lines := strings.Count(content, "\n") + 1
	return &Result{
		Title:  title,
		Output: fmt.Sprintf("Wrote %d lines to %s", lines, path),
		Metadata: map[string]any{
			"path":  path,
			"lines": lines,
			"bytes": len(content),
		},
	}, nil
}

// Edit replaces exact string matches in a file.
type Edit struct {
	workDir string
}

func NewEdit(workDir string) *Edit { return &Edit{workDir: workDir} }

func (e *Edit) Info() Definition {
	return Definition{
		Name:        "Edit",
		Description: "Replace an exact string in a file. The match must be unique unless replace_all is set.",
		InputSchema: objectSchema(map[string]any{
			"file_path":   property("string", "Path to the file, absolute or relative to the working directory"),
			"old_string":  property("string", "Exact text to replace"),
			"new_string":  property("string", "Replacement text"),
			"replace_all": property("boolean", "Replace every occurrence (default false)"),
		}, "file_path", "old_string", "new_string"),
	}
}

func (e *Edit) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	raw := stringArg(args, "file_path")
	if raw == "" {
		return nil, fmt.Errorf("file_path: %w", ErrInvalidArgs)
	}
	path := resolvePath(e.workDir, raw)

	title := fmt.Sprintf("Edit %s", path)
	count, err := replaceInFile(path, stringArg(args, "old_string"), stringArg(args, "new_string"), boolArg(args, "replace_all"))
	if err != nil {
		return &Result{Title: title, Output: err.Error(), Error: err}, nil
	}

	return &Result{
		Title:  title,
		Output: fmt.Sprintf("Replaced %d occurrence(s) in %s", count, path),
		Metadata: map[string]any{
			"path":         path,
			"replacements": count,
		},
	}, nil
}

// Glob finds files by doublestar pattern.
type Glob struct {
	workDir string
}

func NewGlob(workDir string) *Glob { return &Glob{workDir: workDir} }

func (g *Glob) Info() Definition {
	return Definition{
		Name:        "Glob",
		Description: "Find files matching a glob pattern. Use **/*.go for a recursive search.",
		InputSchema: objectSchema(map[string]any{
			"pattern": property("string", "Glob pattern, e.g. **/*.ts or src/**/*.go"),
			"path":    property("string", "Base directory (default: working directory)"),
		}, "pattern"),
	}
}

func (g *Glob) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	pattern := stringArg(args, "pattern")
	if pattern == "" {
		return nil, fmt.Errorf("pattern: %w", ErrInvalidArgs)
	}
	base := resolvePath(g.workDir, stringArg(args, "path"))

	title := fmt.Sprintf("Glob %s", pattern)
	matches, err := globFiles(base, pattern)
	if err != nil {
		return &Result{Title: title, Output: err.Error(), Error: err}, nil
	}

	output := strings.Join(matches, "\n")
	if len(matches) == 0 {
		output = "No files found"
	}

	return &Result{
		Title:  title,
		Output: truncate(output),
		Metadata: map[string]any{
			"pattern": pattern,
			"path":    base,
			"count":   len(matches),
		},
	}, nil
}

// LS lists a directory.
type LS struct {
	workDir string
}

func NewLS(workDir string) *LS { return &LS{workDir: workDir} }

func (l *LS) Info() Definition {
	return Definition{
		Name:        "LS",
		Description: "List directory entries with file sizes. Directories end with a slash.",
		InputSchema: objectSchema(map[string]any{
			"path": property("string", "Directory path (default: working directory)"),
		}),
	}
}

func (l *LS) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	path := resolvePath(l.workDir, stringArg(args, "path"))

	title := fmt.Sprintf("List %s", path)
	entries, err := listDir(path)
	if err != nil {
		return &Result{Title: title, Output: err.Error(), Error: err}, nil
	}

	output := strings.Join(entries, "\n")
	if len(entries) == 0 {
		output = "(empty directory)"
	}

	return &Result{
		Title:  title,
		Output: output,
		Metadata: map[string]any{
			"path":  path,
			"count": len(entries),
		},
	}, nil
}

var (
	_ Handler = (*Read)(nil)
	_ Handler = (*Write)(nil)
	_ Handler = (*Edit)(nil)
	_ Handler = (*Glob)(nil)
	_ Handler = (*LS)(nil)
)
