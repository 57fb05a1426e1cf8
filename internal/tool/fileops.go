package tool

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	maxLineLength = 2000
	maxOutputLen  = 30000
	defaultLimit  = 2000
)

// resolvePath makes p absolute, relative paths being taken from workDir.
func resolvePath(workDir, p string) string {
	if p == "" {
		return filepath.Clean(workDir)
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(workDir, p)
}

func readLines(path string, offset, limit int) (string, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	n := 0
	for scanner.Scan() {
		n++
		if n < offset {
			continue
		}
		if len(lines) >= limit {
			break
		}

		line := scanner.Text()
		if len(line) > maxLineLength {
			line = cutRunes(line, maxLineLength) + "..."
		}
		lines = append(lines, fmt.Sprintf("%6d\t%s", n, line))
	}
	if err := scanner.Err(); err != nil {
		return "", 0, fmt.Errorf("read file: %w", err)
	}

	return strings.Join(lines, "\n"), len(lines), nil
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	return os.WriteFile(path, []byte(content), 0644)
}

func replaceInFile(path, oldStr, newStr string, replaceAll bool) (int, error) {
	if oldStr == "" {
		return 0, fmt.Errorf("old_string is empty")
	}
	if oldStr == newStr {
		return 0, fmt.Errorf("old_string and new_string are identical")
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat file: %w", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read file: %w", err)
	}

	text := string(content)
	count := strings.Count(text, oldStr)
	switch {
	case count == 0:
		return 0, fmt.Errorf("old_string not found in %s", path)
	case count > 1 && !replaceAll:
		return 0, fmt.Errorf("old_string found %d times in %s; set replace_all or add context", count, path)
	}

	if replaceAll {
		text = strings.ReplaceAll(text, oldStr, newStr)
	} else {
		text = strings.Replace(text, oldStr, newStr, 1)
		count = 1
	}

	if err := os.WriteFile(path, []byte(text), info.Mode().Perm()); err != nil {
		return 0, fmt.Errorf("write file: %w", err)
	}
	return count, nil
}

// globFiles returns files under basePath matching a doublestar pattern,
// sorted, as absolute paths.
func globFiles(basePath, pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("bad pattern %q", pattern)
	}

	var matches []string
	err := doublestar.GlobWalk(os.DirFS(basePath), pattern, func(path string, d fs.DirEntry) error {
		if !d.IsDir() {
			matches = append(matches, filepath.Join(basePath, path))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("glob: %w", err)
	}

	sort.Strings(matches)
	return matches, nil
}

func listDir(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}

	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name()+"/")
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, fmt.Sprintf("%s  %s", e.Name(), formatSize(info.Size())))
	}
	return out, nil
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func truncate(s string) string {
	if len(s) > maxOutputLen {
		return cutRunes(s, maxOutputLen) + "\n... (output truncated)"
	}
	return s
}

// cutRunes returns at most n bytes of s without splitting a UTF-8 sequence.
func cutRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// intArg reads a JSON number argument.
func intArg(args map[string]any, key string) (int, bool) {
	switch n := args[key].(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func boolArg(args map[string]any, key string) bool {
	b, _ := args[key].(bool)
	return b
}
