package sandbox

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"emperror.dev/errors"
)

// SearchOptions controls a Search call. The zero value searches the root
// directory non-recursively, case-sensitively, and without context lines.
type SearchOptions struct {
	// The directory to search, relative to the root. Empty means the root.
	Directory string

	// Whether subdirectories are descended into. Hidden directories (name
	// beginning with a dot) and blacklisted directories are never entered.
	Recursive bool

	// Whether matching ignores case.
	IgnoreCase bool

	// How many lines of context to capture before and after each matching
	// line, clipped to the file boundaries. Zero captures none.
	ContextLines int
}

// SearchMatch is a single matching line within a file.
type SearchMatch struct {
	LineNumber int      `json:"line_number"`
	Line       string   `json:"line"`
	Before     []string `json:"before,omitempty"`
	After      []string `json:"after,omitempty"`
}

// FileMatches groups the matches found within one file, identified by its
// path relative to the sandbox root.
type FileMatches struct {
	Path    string        `json:"file"`
	Matches []SearchMatch `json:"matches"`
}

// SearchResults is the outcome of a Search call. Truncated is set when the
// traversal hit the configured directory ceiling before the frontier was
// exhausted, meaning some portion of the tree was never visited.
type SearchResults struct {
	Files     []FileMatches `json:"files"`
	Truncated bool          `json:"truncated"`
}

// Search scans files under a directory for a literal text pattern. Any
// regular-expression metacharacters in the pattern are escaped before
// matching, so matching is substring based rather than pattern based.
//
// Traversal uses an explicit FIFO frontier seeded with the validated search
// root instead of language-level recursion. Each directory popped from the
// frontier is resolved to its canonical symlink-free form and skipped if that
// form was already visited, which defeats symlink cycles under an untrusted
// tree. Total work is bounded by the configured maximum directory count.
//
// Like ListDirectory, Search does not pass through the admission gate.
func (s *Sandbox) Search(pattern string, opts SearchOptions) (*SearchResults, error) {
	cleaned, err := s.SafePath(opts.Directory)
	if err != nil {
		return nil, err
	}

	expr := regexp.QuoteMeta(pattern)
	if opts.IgnoreCase {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, errors.Wrap(err, "sandbox: search: failed to compile pattern")
	}

	results := &SearchResults{Files: []FileMatches{}}
	frontier := []string{cleaned}
	visited := make(map[string]struct{})
	processed := 0

	for len(frontier) > 0 {
		if processed >= s.maxSearchDirs {
			results.Truncated = true
			break
		}

		dir := frontier[0]
		frontier = frontier[1:]

		canonical, err := filepath.EvalSymlinks(dir)
		if err != nil {
			continue
		}
		// A symlinked directory may canonicalize to somewhere outside the
		// root; never enumerate those.
		if !s.unsafeIsInRoot(canonical) {
			continue
		}
		if _, ok := visited[canonical]; ok {
			continue
		}
		visited[canonical] = struct{}{}
		processed++

		entries, err := os.ReadDir(dir)
		if err != nil {
			s.log().WithField("directory", dir).WithField("error", err).Debug("skipping unreadable directory during search")
			continue
		}

		for _, e := range entries {
			name := e.Name()
			full := filepath.Join(dir, name)

			isDir := e.IsDir()
			if !isDir && e.Type()&os.ModeSymlink != 0 {
				if st, err := os.Stat(full); err == nil && st.IsDir() {
					isDir = true
				}
			}

			if isDir {
				if !opts.Recursive || strings.HasPrefix(name, ".") || s.isBlacklisted(name) {
					continue
				}
				frontier = append(frontier, full)
				continue
			}

			if s.isBlacklisted(name) || !s.isAllowedExtension(name) {
				continue
			}
			info, err := e.Info()
			if err != nil || s.exceedsLimit(info.Size()) {
				continue
			}

			matches, err := scanFileLines(full, re, opts.ContextLines)
			if err != nil || len(matches) == 0 {
				continue
			}
			rel, err := filepath.Rel(s.root, full)
			if err != nil {
				continue
			}
			results.Files = append(results.Files, FileMatches{Path: rel, Matches: matches})
		}
	}

	return results, nil
}

// scanFileLines reads a file and returns every line matching the expression,
// with 1-based line numbers and the requested amount of surrounding context
// clipped to the file boundaries. Files passed here have already cleared the
// size limit, so holding all lines in memory is bounded by that limit.
func scanFileLines(path string, re *regexp.Regexp, contextLines int) ([]SearchMatch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	var matches []SearchMatch
	for i, line := range lines {
		if !re.MatchString(line) {
			continue
		}
		m := SearchMatch{LineNumber: i + 1, Line: line}
		if contextLines > 0 {
			start := i - contextLines
			if start < 0 {
				start = 0
			}
			end := i + contextLines + 1
			if end > len(lines) {
				end = len(lines)
			}
			m.Before = append([]string(nil), lines[start:i]...)
			m.After = append([]string(nil), lines[i+1:end]...)
		}
		matches = append(matches, m)
	}
	return matches, nil
}
