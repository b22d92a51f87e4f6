package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/franela/goblin"
)

func TestSandbox_Search(t *testing.T) {
	g := Goblin(t)
	s, rfs := newTestSandbox()

	g.Describe("Search", func() {
		g.It("finds matches only in the searched directory when not recursive", func() {
			g.Assert(rfs.CreateSandboxFileFromString("top.txt", "Hello from the top")).IsNil()
			g.Assert(rfs.CreateSandboxFileFromString("nested/deep.txt", "Hello from below")).IsNil()

			results, err := s.Search("Hello", SearchOptions{})
			g.Assert(err).IsNil()
			g.Assert(results.Truncated).IsFalse()
			g.Assert(len(results.Files)).Equal(1)
			g.Assert(results.Files[0].Path).Equal("top.txt")
		})

		g.It("descends into subdirectories when recursive", func() {
			g.Assert(rfs.CreateSandboxFileFromString("top.txt", "Hello from the top")).IsNil()
			g.Assert(rfs.CreateSandboxFileFromString("nested/deep.txt", "Hello from below")).IsNil()

			results, err := s.Search("Hello", SearchOptions{Recursive: true})
			g.Assert(err).IsNil()
			g.Assert(len(results.Files)).Equal(2)
		})

		g.It("records 1-based line numbers", func() {
			g.Assert(rfs.CreateSandboxFileFromString("lines.txt", "one\ntwo\nthree needle\nfour")).IsNil()

			results, err := s.Search("needle", SearchOptions{})
			g.Assert(err).IsNil()
			g.Assert(len(results.Files)).Equal(1)
			g.Assert(len(results.Files[0].Matches)).Equal(1)
			g.Assert(results.Files[0].Matches[0].LineNumber).Equal(3)
			g.Assert(results.Files[0].Matches[0].Line).Equal("three needle")
		})

		g.It("treats the pattern as literal text, not a regular expression", func() {
			g.Assert(rfs.CreateSandboxFileFromString("meta.txt", "literal a.c here\nabc there")).IsNil()

			results, err := s.Search("a.c", SearchOptions{})
			g.Assert(err).IsNil()
			g.Assert(len(results.Files)).Equal(1)
			g.Assert(len(results.Files[0].Matches)).Equal(1)
			g.Assert(results.Files[0].Matches[0].LineNumber).Equal(1)
		})

		g.It("matches case-insensitively when requested", func() {
			g.Assert(rfs.CreateSandboxFileFromString("case.txt", "SHOUTED needle")).IsNil()

			results, err := s.Search("Needle", SearchOptions{})
			g.Assert(err).IsNil()
			g.Assert(len(results.Files)).Equal(0)

			results, err = s.Search("Needle", SearchOptions{IgnoreCase: true})
			g.Assert(err).IsNil()
			g.Assert(len(results.Files)).Equal(1)
		})

		g.It("clips context lines to the file boundaries", func() {
			g.Assert(rfs.CreateSandboxFileFromString("ctx.txt", "first match\nb\nc\nd\nlast match")).IsNil()

			results, err := s.Search("match", SearchOptions{ContextLines: 2})
			g.Assert(err).IsNil()
			g.Assert(len(results.Files)).Equal(1)

			matches := results.Files[0].Matches
			g.Assert(len(matches)).Equal(2)
			g.Assert(len(matches[0].Before)).Equal(0)
			g.Assert(matches[0].After).Equal([]string{"b", "c"})
			g.Assert(matches[1].Before).Equal([]string{"c", "d"})
			g.Assert(len(matches[1].After)).Equal(0)
		})

		g.It("skips files that exceed the size limit", func() {
			g.Assert(rfs.CreateSandboxFileFromString("big.txt", "needle needle needle needle")).IsNil()

			s.maxFileSize = 8
			results, err := s.Search("needle", SearchOptions{})
			g.Assert(err).IsNil()
			g.Assert(len(results.Files)).Equal(0)
		})

		g.It("skips hidden and blacklisted directories during recursion", func() {
			g.Assert(rfs.CreateSandboxFileFromString(".hidden/file.txt", "needle")).IsNil()
			g.Assert(rfs.CreateSandboxFileFromString("secret/file.txt", "needle")).IsNil()
			g.Assert(rfs.CreateSandboxFileFromString("open/file.txt", "needle")).IsNil()

			results, err := s.Search("needle", SearchOptions{Recursive: true})
			g.Assert(err).IsNil()
			g.Assert(len(results.Files)).Equal(1)
			g.Assert(results.Files[0].Path).Equal(filepath.Join("open", "file.txt"))
		})

		g.It("never processes the same canonical directory twice with a symlink cycle", func() {
			g.Assert(rfs.CreateSandboxFileFromString("a/file.txt", "needle")).IsNil()
			// Create a cycle: a/loop points back at the search root.
			g.Assert(os.Symlink(s.Path(), filepath.Join(s.Path(), "a", "loop"))).IsNil()

			results, err := s.Search("needle", SearchOptions{Recursive: true})
			g.Assert(err).IsNil()
			g.Assert(results.Truncated).IsFalse()
			g.Assert(len(results.Files)).Equal(1)
			g.Assert(len(results.Files[0].Matches)).Equal(1)
		})

		g.It("flags the result as truncated when the directory ceiling is reached", func() {
			g.Assert(rfs.CreateSandboxFileFromString("a/one.txt", "needle")).IsNil()
			g.Assert(rfs.CreateSandboxFileFromString("b/two.txt", "needle")).IsNil()

			s.maxSearchDirs = 1
			results, err := s.Search("needle", SearchOptions{Recursive: true})
			g.Assert(err).IsNil()
			g.Assert(results.Truncated).IsTrue()
			// Only the root itself was processed before the cutoff.
			g.Assert(len(results.Files)).Equal(0)
		})

		g.It("rejects a search directory outside the root", func() {
			_, err := s.Search("needle", SearchOptions{Directory: "../"})
			g.Assert(err).IsNotNil()
			g.Assert(IsErrorCode(err, ErrCodePathResolution)).IsTrue()
		})

		g.AfterEach(func() {
			s.maxFileSize = 0
			s.maxSearchDirs = 512
			rfs.reset()
		})
	})
}
