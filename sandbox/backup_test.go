package sandbox

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/franela/goblin"
)

func TestBackupManager_Snapshot(t *testing.T) {
	g := Goblin(t)

	tmpDir, err := os.MkdirTemp(os.TempDir(), "warden")
	if err != nil {
		panic(err)
	}
	store := filepath.Join(tmpDir, ".backups")
	b := NewBackupManager(store)

	writeSource := func(name, content string) string {
		p := filepath.Join(tmpDir, name)
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			panic(err)
		}
		return p
	}

	g.Describe("Snapshot", func() {
		g.It("creates the backup directory on first use", func() {
			_, err := os.Stat(store)
			g.Assert(os.IsNotExist(err)).IsTrue()

			_, err = b.Snapshot(writeSource("first.txt", "content"))
			g.Assert(err).IsNil()

			st, err := os.Stat(store)
			g.Assert(err).IsNil()
			g.Assert(st.IsDir()).IsTrue()
		})

		g.It("names the backup after the source basename with a timestamp", func() {
			p, err := b.Snapshot(writeSource("named.txt", "content"))
			g.Assert(err).IsNil()

			name := filepath.Base(p)
			g.Assert(strings.HasPrefix(name, "named.txt.")).IsTrue()
			g.Assert(strings.HasSuffix(name, ".backup")).IsTrue()
			g.Assert(strings.Contains(name, ":")).IsFalse()
		})

		g.It("copies the exact bytes of the source", func() {
			p, err := b.Snapshot(writeSource("bytes.txt", "some exact bytes"))
			g.Assert(err).IsNil()

			out, err := os.ReadFile(p)
			g.Assert(err).IsNil()
			g.Assert(string(out)).Equal("some exact bytes")
		})

		g.It("keeps earlier snapshots when the same file is snapshotted again", func() {
			src := writeSource("repeat.txt", "v1")
			_, err := b.Snapshot(src)
			g.Assert(err).IsNil()

			g.Assert(os.WriteFile(src, []byte("v2"), 0o644)).IsNil()
			_, err = b.Snapshot(src)
			g.Assert(err).IsNil()

			entries, err := os.ReadDir(store)
			g.Assert(err).IsNil()

			var matches int
			for _, e := range entries {
				if strings.HasPrefix(e.Name(), "repeat.txt.") {
					matches++
				}
			}
			g.Assert(matches).Equal(2)
		})

		g.It("fails when the source file does not exist", func() {
			_, err := b.Snapshot(filepath.Join(tmpDir, "missing.txt"))
			g.Assert(err).IsNotNil()
		})
	})
}

func TestBackupName(t *testing.T) {
	g := Goblin(t)

	g.Describe("backupName", func() {
		g.It("embeds the UTC timestamp with filesystem-safe separators", func() {
			at := time.Date(2024, 3, 1, 12, 30, 45, 123456789, time.UTC)
			g.Assert(backupName("app.log", at)).Equal("app.log.2024-03-01T12-30-45.123456789Z.backup")
		})
	})
}
