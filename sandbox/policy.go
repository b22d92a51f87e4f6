package sandbox

import (
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// BlacklistPolicy denies access to paths within the sandbox. Policies are
// evaluated in declaration order against the path relative to the root; the
// first policy that matches denies the operation.
type BlacklistPolicy interface {
	// Matches returns true if access to the relative path should be denied.
	Matches(rel string) bool
}

// SubstringPolicy denies any relative path that contains the pattern.
type SubstringPolicy string

func (p SubstringPolicy) Matches(rel string) bool {
	return strings.Contains(rel, string(p))
}

// PrefixPolicy denies any file whose name begins with Prefix, unless the name
// ends with one of the allowed suffixes.
type PrefixPolicy struct {
	Prefix          string
	AllowedSuffixes []string
}

func (p PrefixPolicy) Matches(rel string) bool {
	name := filepath.Base(rel)
	if !strings.HasPrefix(name, p.Prefix) {
		return false
	}
	for _, s := range p.AllowedSuffixes {
		if strings.HasSuffix(name, s) {
			return false
		}
	}
	return true
}

// PatternPolicy denies relative paths matching a compiled set of
// gitignore-style patterns.
type PatternPolicy struct {
	gi *ignore.GitIgnore
}

// NewPatternPolicy compiles the given gitignore-style lines into a policy.
func NewPatternPolicy(patterns ...string) *PatternPolicy {
	return &PatternPolicy{gi: ignore.CompileIgnoreLines(patterns...)}
}

func (p *PatternPolicy) Matches(rel string) bool {
	return p.gi.MatchesPath(rel)
}
