package tool

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	grepModeContent = "content"
	grepModeFiles   = "files_with_matches"
	grepModeCount   = "count"
)

// skipDirs are never descended into.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
}

// Grep searches file contents with a regular expression.
type Grep struct {
	workDir string
}

func NewGrep(workDir string) *Grep { return &Grep{workDir: workDir} }

func (g *Grep) Info() Definition {
	return Definition{
		Name:        "Grep",
		Description: "Search file contents with a regular expression (RE2 syntax). Binary files are skipped.",
		InputSchema: objectSchema(map[string]any{
			"pattern":          property("string", "Regular expression to search for"),
			"path":             property("string", "File or directory to search (default: working directory)"),
			"include":          property("string", "Only search files whose relative path matches this glob, e.g. **/*.go"),
			"case_insensitive": property("boolean", "Case insensitive search"),
			"output_mode": map[string]any{
				"type":        "string",
				"enum":        []string{grepModeContent, grepModeFiles, grepModeCount},
				"description": "content (default), files_with_matches or count",
			},
			"head_limit": property("integer", "Limit output to the first N lines"),
		}, "pattern"),
	}
}

type grepHit struct {
	path  string
	line  int
	text  string
	count int
}

func (g *Grep) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	pattern := stringArg(args, "pattern")
	if pattern == "" {
		return nil, fmt.Errorf("pattern: %w", ErrInvalidArgs)
	}
	if boolArg(args, "case_insensitive") {
		pattern = "(?i)" + pattern
	}

	title := fmt.Sprintf("Grep %s", stringArg(args, "pattern"))
	re, err := regexp.Compile(pattern)
	if err != nil {
		return &Result{Title: title, Output: err.Error(), Error: err}, nil
	}

	include := stringArg(args, "include")
	if include != "" && !doublestar.ValidatePattern(include) {
		err := fmt.Errorf("bad include pattern %q", include)
		return &Result{Title: title, Output: err.Error(), Error: err}, nil
	}

	mode := stringArg(args, "output_mode")
	if mode == "" {
		mode = grepModeContent
	}

	root := resolvePath(g.workDir, stringArg(args, "path"))
	hits, err := searchTree(ctx, root, re, include, mode == grepModeContent)
	if err != nil {
		return &Result{Title: title, Output: err.Error(), Error: err}, nil
	}

	lines := formatHits(hits, mode)
	if limit, ok := intArg(args, "head_limit"); ok && limit > 0 && limit < len(lines) {
		lines = lines[:limit]
	}

	output := strings.Join(lines, "\n")
	if len(lines) == 0 {
		output = "No matches found"
	}

	return &Result{
		Title:  title,
		Output: truncate(output),
		Metadata: map[string]any{
			"pattern":     stringArg(args, "pattern"),
			"path":        root,
			"output_mode": mode,
			"matches":     len(hits),
		},
	}, nil
}

// searchTree walks root and returns per-line hits (content mode) or
// per-file counts.
func searchTree(ctx context.Context, root string, re *regexp.Regexp, include string, perLine bool) ([]grepHit, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}
	if !info.IsDir() {
		return searchFile(root, re, perLine)
	}

	var hits []grepHit
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if path != root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if include != "" {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return nil
			}
			if ok, _ := doublestar.Match(include, filepath.ToSlash(rel)); !ok {
				return nil
			}
		}

		found, err := searchFile(path, re, perLine)
		if err != nil {
			return nil
		}
		hits = append(hits, found...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hits, nil
}

func searchFile(path string, re *regexp.Regexp, perLine bool) ([]grepHit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	head, _ := reader.Peek(512)
	if bytes.IndexByte(head, 0) >= 0 {
		return nil, nil
	}

	var hits []grepHit
	count := 0
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	n := 0
	for scanner.Scan() {
		n++
		line := scanner.Text()
		if !re.MatchString(line) {
			continue
		}
		count++
		if perLine {
			if len(line) > maxLineLength {
				line = cutRunes(line, maxLineLength) + "..."
			}
			hits = append(hits, grepHit{path: path, line: n, text: line})
		}
	}
	if !perLine && count > 0 {
		hits = append(hits, grepHit{path: path, count: count})
	}
	return hits, scanner.Err()
}

func formatHits(hits []grepHit, mode string) []string {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].path < hits[j].path
	})

	lines := make([]string, 0, len(hits))
	for _, h := range hits {
		switch mode {
		case grepModeFiles:
			lines = append(lines, h.path)
		case grepModeCount:
			lines = append(lines, fmt.Sprintf("%s:%d", h.path, h.count))
		default:
			lines = append(lines, fmt.Sprintf("%s:%d:%s", h.path, h.line, h.text))
		}
	}
	return lines
}

var _ Handler = (*Grep)(nil)
