package sandbox

import (
	"context"
	"path/filepath"
	"strings"

	"emperror.dev/errors"
	"golang.org/x/sync/errgroup"
)

// SafePath normalizes a caller provided path and confirms that it resolves
// within the sandbox root, returning the absolute path on the host. Blacklist
// policies are applied to anything other than the root itself. This is the
// entrypoint for directory operations; file operations should use
// SafeFilePath which additionally enforces the extension whitelist.
func (s *Sandbox) SafePath(p string) (string, error) {
	return s.resolve(p, false)
}

// SafeFilePath performs the same resolution and blacklist checks as SafePath
// and then requires the final path segment to carry an extension from the
// allowed set. The comparison is case-insensitive, and extensionless files
// are permitted only when the empty string is an explicit member of the set.
func (s *Sandbox) SafeFilePath(p string) (string, error) {
	return s.resolve(p, true)
}

// resolve is pure with respect to its inputs and the static configuration;
// it holds no shared mutable state and is safe to call concurrently.
func (s *Sandbox) resolve(p string, isFileOperation bool) (string, error) {
	r := s.unsafePath(p)
	if !s.unsafeIsInRoot(r) {
		return "", NewBadPathResolution(p, r)
	}

	// The root itself carries no name to filter on, so blacklist and
	// extension checks are skipped for it.
	if r == s.root {
		return r, nil
	}

	rel, err := filepath.Rel(s.root, r)
	if err != nil {
		return "", errors.Wrap(err, "sandbox: failed to compute relative path")
	}
	if err := s.checkBlacklist(p, r, rel); err != nil {
		return "", err
	}

	if isFileOperation && !s.isAllowedExtension(r) {
		return "", newError(ErrCodeExtensionDenied, nil, p)
	}
	return r, nil
}

// checkBlacklist evaluates each policy in declaration order against the
// relative path. The first match denies.
func (s *Sandbox) checkBlacklist(p, resolved, rel string) error {
	for _, policy := range s.policies {
		if policy.Matches(rel) {
			return errors.WithStackDepthIf(&Error{code: ErrCodeDenylistFile, path: p, resolved: resolved}, 1)
		}
	}
	return nil
}

// isBlacklisted checks a bare entry name against the policies. Used by the
// directory walker where entries are filtered by name without any further
// path resolution.
func (s *Sandbox) isBlacklisted(name string) bool {
	for _, policy := range s.policies {
		if policy.Matches(name) {
			return true
		}
	}
	return false
}

// isAllowedExtension checks the extension of the final path segment against
// the allowed set, case-insensitively.
func (s *Sandbox) isAllowedExtension(p string) bool {
	ext := strings.ToLower(filepath.Ext(filepath.Base(p)))
	_, ok := s.extensions[ext]
	return ok
}

// Generates a path by cleaning the caller input and joining it onto the root.
// This DOES NOT guarantee that the result remains within the root; callers
// must confirm that with unsafeIsInRoot.
func (s *Sandbox) unsafePath(p string) string {
	// Cleaning the joined path collapses any ../ style segments and leaves
	// us with a direct absolute path. Trimming an existing root prefix off
	// the input first keeps double-rooted requests from getting messy.
	return filepath.Clean(filepath.Join(s.root, strings.TrimPrefix(p, s.root)))
}

// Checks that the given path equals the root or sits strictly inside it. The
// trailing separator dance prevents a sibling like "/srv/data-evil" from
// passing as a child of "/srv/data".
func (s *Sandbox) unsafeIsInRoot(p string) bool {
	sep := string(filepath.Separator)
	return strings.HasPrefix(strings.TrimSuffix(p, sep)+sep, strings.TrimSuffix(s.root, sep)+sep)
}

// parallelSafeFilePath resolves multiple paths as file operations in
// parallel, failing fast if any single resolution fails.
func (s *Sandbox) parallelSafeFilePath(paths ...string) ([]string, error) {
	cleaned := make([]string, len(paths))

	g, ctx := errgroup.WithContext(context.Background())
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				c, err := s.SafeFilePath(p)
				if err != nil {
					return err
				}
				cleaned[i] = c
				return nil
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return cleaned, nil
}
