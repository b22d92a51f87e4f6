package sandbox

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"emperror.dev/errors"
)

// BackupManager copies the current bytes of a file into the backup store
// before a destructive mutation is performed. Backups are stored flatly in a
// single directory regardless of where the source file lives in the tree, so
// same-named files from different directories share a namespace and are kept
// apart only by the nanosecond timestamp embedded in the backup name. The
// manager performs no retention or cleanup of any kind.
type BackupManager struct {
	dir string
}

// NewBackupManager returns a manager writing backups into the given
// directory. The directory is created lazily on the first snapshot.
func NewBackupManager(dir string) *BackupManager {
	return &BackupManager{dir: dir}
}

// Path returns the directory that backups are written into.
func (b *BackupManager) Path() string {
	return b.dir
}

// Snapshot copies the bytes of the file at the resolved path into the backup
// store and returns the path of the backup that was written. Snapshotting is
// synchronous: if it fails the caller must abort its mutation rather than
// proceed unprotected.
func (b *BackupManager) Snapshot(resolved string) (string, error) {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return "", errors.Wrap(err, "sandbox: backup: failed to create backup directory")
	}

	src, err := os.Open(resolved)
	if err != nil {
		return "", errors.Wrap(err, "sandbox: backup: failed to open source file")
	}
	defer src.Close()

	p := filepath.Join(b.dir, backupName(filepath.Base(resolved), time.Now()))
	dst, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", errors.Wrap(err, "sandbox: backup: failed to create backup file")
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", errors.Wrap(err, "sandbox: backup: failed to copy file contents")
	}
	if err := dst.Close(); err != nil {
		return "", errors.Wrap(err, "sandbox: backup: failed to flush backup file")
	}
	return p, nil
}

// backupName generates "<basename>.<timestamp>.backup" with the colons of the
// RFC3339 timestamp replaced so the name is safe on any filesystem.
func backupName(base string, t time.Time) string {
	ts := strings.ReplaceAll(t.UTC().Format(time.RFC3339Nano), ":", "-")
	return base + "." + ts + ".backup"
}
