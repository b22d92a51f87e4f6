package sandbox

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/gammazero/workerpool"
)

// ListDirectory enumerates the immediate children of a directory within the
// sandbox, without recursing. File entries must pass the extension whitelist
// and the blacklist policies to be included; directory entries are subject to
// the blacklist only. Filtering is applied directly to entry names since no
// further path resolution is needed at this point.
//
// Listing does not pass through the admission gate: it is bulk and streaming
// in nature and is bounded only by the size of the directory itself.
func (s *Sandbox) ListDirectory(dir string) ([]*Stat, error) {
	cleaned, err := s.SafePath(dir)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(cleaned)
	if err != nil {
		return nil, wrapError(err, dir)
	}

	var included []os.DirEntry
	for _, e := range entries {
		if s.isBlacklisted(e.Name()) {
			continue
		}
		if !e.IsDir() && !s.isAllowedExtension(e.Name()) {
			continue
		}
		included = append(included, e)
	}

	// The output must be initialized as a non-nil value so an empty
	// directory marshals as [] rather than null.
	out := make([]*Stat, len(included))

	// MIME detection hits the disk for every file, so fan the lookups out
	// over a small bounded pool rather than doing them serially or spawning
	// a goroutine per entry.
	pool := workerpool.New(4)
	for i, e := range included {
		i, e := i, e
		pool.Submit(func() {
			info, err := e.Info()
			if err != nil {
				return
			}
			st := &Stat{FileInfo: info, Mimetype: "inode/directory"}
			if !info.IsDir() {
				if fst, err := unsafeStat(filepath.Join(cleaned, e.Name())); err == nil {
					st.Mimetype = fst.Mimetype
				} else {
					st.Mimetype = "application/octet-stream"
				}
			}
			out[i] = st
		})
	}
	pool.StopWait()

	// Entries whose stat failed mid-listing (deleted underneath us) leave
	// nil holes; compact them away.
	stats := out[:0]
	for _, st := range out {
		if st != nil {
			stats = append(stats, st)
		}
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Name() < stats[j].Name()
	})
	// Directories are listed ahead of files, both groups staying
	// alphabetized.
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].IsDir() && !stats[j].IsDir()
	})
	return stats, nil
}
