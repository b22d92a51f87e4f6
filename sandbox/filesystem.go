package sandbox

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"emperror.dev/errors"
	"github.com/cenkalti/backoff/v4"
)

// ReadFile returns the full text content of a file within the sandbox. Files
// larger than the configured maximum are refused before any bytes are read.
func (s *Sandbox) ReadFile(p string) (string, error) {
	if err := s.gate.Acquire(); err != nil {
		return "", err
	}
	defer s.gate.Release()

	cleaned, err := s.SafeFilePath(p)
	if err != nil {
		return "", err
	}

	st, err := os.Stat(cleaned)
	if err != nil {
		return "", wrapError(err, p)
	}
	if st.IsDir() {
		return "", newError(ErrCodeIsDirectory, nil, p)
	}
	if s.exceedsLimit(st.Size()) {
		return "", newError(ErrCodeSizeLimit, nil, p)
	}

	b, err := os.ReadFile(cleaned)
	if err != nil {
		return "", wrapError(err, p)
	}
	return string(b), nil
}

// WriteFile replaces the contents of a file with the provided content,
// creating the file and any missing parent directories as needed. When
// backup is true and the file already exists its current bytes are
// snapshotted before being overwritten.
//
// There is no per-path serialization: two concurrent writes to the same path
// race, and the last writer wins. A caller needing stronger guarantees must
// serialize externally.
func (s *Sandbox) WriteFile(p string, content string, backup bool) error {
	if err := s.gate.Acquire(); err != nil {
		return err
	}
	defer s.gate.Release()

	cleaned, err := s.SafeFilePath(p)
	if err != nil {
		return err
	}
	if s.exceedsLimit(int64(len(content))) {
		return newError(ErrCodeSizeLimit, nil, p)
	}

	st, err := os.Stat(cleaned)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "sandbox: writefile: failed to stat file")
	} else if err == nil {
		if st.IsDir() {
			return newError(ErrCodeIsDirectory, nil, p)
		}
		if backup {
			if _, err := s.backups.Snapshot(cleaned); err != nil {
				return err
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(cleaned), 0o755); err != nil {
		return errors.Wrap(err, "sandbox: writefile: failed to create directory tree")
	}

	f, err := openFile(cleaned, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(err, "sandbox: writefile: failed to open file handle")
	}
	defer f.Close()

	if _, err := io.Copy(f, strings.NewReader(content)); err != nil {
		return errors.Wrap(err, "sandbox: writefile: failed to write contents")
	}
	return nil
}

// StreamWrite consumes the reader sequentially and writes its bytes to the
// given path, returning the number of bytes written. The running total is
// checked against the maximum file size as chunks arrive; the moment it is
// exceeded the operation aborts with ErrCodeSizeLimit.
//
// Bytes are staged in a temporary sibling file that is renamed into place
// only once the stream has been fully consumed, so an aborted stream never
// leaves a truncated file at the destination.
func (s *Sandbox) StreamWrite(p string, r io.Reader) (int64, error) {
	if err := s.gate.Acquire(); err != nil {
		return 0, err
	}
	defer s.gate.Release()

	cleaned, err := s.SafeFilePath(p)
	if err != nil {
		return 0, err
	}
	if st, err := os.Stat(cleaned); err == nil && st.IsDir() {
		return 0, newError(ErrCodeIsDirectory, nil, p)
	}
	if err := os.MkdirAll(filepath.Dir(cleaned), 0o755); err != nil {
		return 0, errors.Wrap(err, "sandbox: streamwrite: failed to create directory tree")
	}

	tmp, err := os.CreateTemp(filepath.Dir(cleaned), "."+filepath.Base(cleaned)+".*.partial")
	if err != nil {
		return 0, errors.Wrap(err, "sandbox: streamwrite: failed to create staging file")
	}
	discard := func() {
		tmp.Close()
		_ = os.Remove(tmp.Name())
	}

	var written int64
	buf := make([]byte, 1024*4)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			written += int64(n)
			if s.exceedsLimit(written) {
				discard()
				return 0, newError(ErrCodeSizeLimit, nil, p)
			}
			if _, werr := tmp.Write(buf[:n]); werr != nil {
				discard()
				return 0, errors.Wrap(werr, "sandbox: streamwrite: failed to write chunk")
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			discard()
			return 0, errors.Wrap(rerr, "sandbox: streamwrite: failed to consume stream")
		}
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, errors.Wrap(err, "sandbox: streamwrite: failed to flush staging file")
	}
	// CreateTemp produces a 0600 file; align it with normal write perms
	// before it lands at the destination.
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, errors.Wrap(err, "sandbox: streamwrite: failed to chmod staging file")
	}
	if err := os.Rename(tmp.Name(), cleaned); err != nil {
		_ = os.Remove(tmp.Name())
		return 0, errors.Wrap(err, "sandbox: streamwrite: failed to move staging file into place")
	}
	return written, nil
}

// Delete unlinks a file within the sandbox, snapshotting its bytes first when
// backup is true.
func (s *Sandbox) Delete(p string, backup bool) error {
	if err := s.gate.Acquire(); err != nil {
		return err
	}
	defer s.gate.Release()

	cleaned, err := s.SafeFilePath(p)
	if err != nil {
		return err
	}

	st, err := os.Lstat(cleaned)
	if err != nil {
		return wrapError(err, p)
	}
	if st.IsDir() {
		return newError(ErrCodeIsDirectory, nil, p)
	}

	if backup {
		if _, err := s.backups.Snapshot(cleaned); err != nil {
			return err
		}
	}
	if err := os.Remove(cleaned); err != nil {
		return wrapError(err, p)
	}
	return nil
}

// Rename moves a file to a new path within the sandbox. The destination must
// not already exist; there are no overwrite semantics. When backup is true
// the source bytes are snapshotted before the move.
func (s *Sandbox) Rename(from string, to string, backup bool) error {
	if err := s.gate.Acquire(); err != nil {
		return err
	}
	defer s.gate.Release()

	cleaned, err := s.parallelSafeFilePath(from, to)
	if err != nil {
		return err
	}
	cleanedFrom, cleanedTo := cleaned[0], cleaned[1]

	if _, err := os.Stat(cleanedFrom); err != nil {
		return wrapError(err, from)
	}
	if _, err := os.Stat(cleanedTo); err == nil {
		return newError(ErrCodeAlreadyExists, nil, to)
	} else if !os.IsNotExist(err) {
		return errors.Wrap(err, "sandbox: rename: failed to stat destination")
	}

	if backup {
		if _, err := s.backups.Snapshot(cleanedFrom); err != nil {
			return err
		}
	}

	if d := filepath.Dir(cleanedTo); d != s.root {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return errors.Wrap(err, "sandbox: rename: failed to create directory structure")
		}
	}
	if err := os.Rename(cleanedFrom, cleanedTo); err != nil {
		return wrapError(err, from)
	}
	return nil
}

// ReplaceInFile locates oldFragment as an exact substring of the file's
// content and replaces it with newFragment. The fragment is used as an
// unanchored positional patch, so it must occur exactly once: zero
// occurrences fail with ErrCodeNoMatch and two or more with
// ErrCodeAmbiguousMatch. The pre-mutation content is always snapshotted; the
// backup is not caller-optional because this operation is destructive by
// construction.
func (s *Sandbox) ReplaceInFile(p string, oldFragment string, newFragment string) error {
	if err := s.gate.Acquire(); err != nil {
		return err
	}
	defer s.gate.Release()

	cleaned, err := s.SafeFilePath(p)
	if err != nil {
		return err
	}

	st, err := os.Stat(cleaned)
	if err != nil {
		return wrapError(err, p)
	}
	if st.IsDir() {
		return newError(ErrCodeIsDirectory, nil, p)
	}
	if s.exceedsLimit(st.Size()) {
		return newError(ErrCodeSizeLimit, nil, p)
	}

	b, err := os.ReadFile(cleaned)
	if err != nil {
		return wrapError(err, p)
	}
	content := string(b)

	idx := strings.Index(content, oldFragment)
	if idx == -1 {
		return newError(ErrCodeNoMatch, nil, p)
	}
	if strings.Contains(content[idx+len(oldFragment):], oldFragment) {
		return newError(ErrCodeAmbiguousMatch, nil, p)
	}

	replaced := content[:idx] + newFragment + content[idx+len(oldFragment):]
	if s.exceedsLimit(int64(len(replaced))) {
		return newError(ErrCodeSizeLimit, nil, p)
	}

	if _, err := s.backups.Snapshot(cleaned); err != nil {
		return err
	}
	if err := os.WriteFile(cleaned, []byte(replaced), st.Mode()); err != nil {
		return errors.Wrap(err, "sandbox: replace: failed to write replacement contents")
	}
	return nil
}

// openFile opens a file handle, retrying with an exponential backoff when the
// OS reports the file as busy because some other process holds it open for
// execution.
func openFile(path string, flag int, perm os.FileMode) (*os.File, error) {
	var f *os.File
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	err := backoff.Retry(func() error {
		var err error
		f, err = os.OpenFile(path, flag, perm)
		if err == nil {
			return nil
		}
		if strings.Contains(err.Error(), "text file busy") {
			return err
		}
		return backoff.Permanent(err)
	}, b)
	return f, err
}
