package sandbox

import (
	"os"

	"emperror.dev/errors"
	"github.com/karrick/godirwalk"
	gocache "github.com/patrickmn/go-cache"
)

const diskUsageCacheKey = "disk_usage"

// DiskUsage returns the total size in bytes of all regular files under the
// sandbox root. Walking the tree is taxing on large trees, so the computed
// value is cached for a short window and concurrent callers queue behind a
// single walk rather than piling walks onto the disk.
func (s *Sandbox) DiskUsage() (int64, error) {
	if x, found := s.usageCache.Get(diskUsageCacheKey); found {
		return x.(int64), nil
	}

	s.usageMu.Lock()
	defer s.usageMu.Unlock()

	// Another caller may have completed the walk while we waited.
	if x, found := s.usageCache.Get(diskUsageCacheKey); found {
		return x.(int64), nil
	}

	size, err := s.DirectorySize(s.root)
	if err != nil {
		return 0, err
	}
	s.usageCache.Set(diskUsageCacheKey, size, gocache.DefaultExpiration)
	return size, nil
}

// DirectorySize calculates the size of a directory and all of its
// descendants. Symlinks are never followed: a symlinked directory pointing
// outside the root (or back into it) would otherwise distort the count.
func (s *Sandbox) DirectorySize(dir string) (int64, error) {
	var size int64
	err := godirwalk.Walk(dir, &godirwalk.Options{
		Unsorted: true,
		Callback: func(p string, e *godirwalk.Dirent) error {
			if !e.IsRegular() {
				return nil
			}
			st, err := os.Lstat(p)
			if err != nil {
				return err
			}
			size += st.Size()
			return nil
		},
	})
	return size, errors.Wrap(err, "sandbox: failed to walk directory for size")
}
