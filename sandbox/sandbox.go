package sandbox

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/apex/log"
	gocache "github.com/patrickmn/go-cache"
)

// Config holds the immutable settings for a Sandbox instance. It is consumed
// once at construction and never re-read.
type Config struct {
	// The root directory that every operation is confined to.
	Root string

	// The maximum size in bytes for any file read or written through the
	// sandbox. A value of zero disables the limit.
	MaxFileSize int64

	// The maximum number of operations allowed to be in-flight at once.
	MaxConcurrent int

	// The maximum number of directories a single search is allowed to
	// process before the traversal is cut off and flagged as truncated.
	MaxSearchDirectories int

	// The set of file extensions (lowercase, leading dot) that file
	// operations may touch. An empty string member allows extensionless
	// files.
	AllowedExtensions []string

	// Blacklist policies, evaluated in order. The first match denies.
	Policies []BlacklistPolicy

	// The name of the directory under the root that backups are written
	// into. Defaults to ".backups".
	BackupDirectory string
}

type Sandbox struct {
	root          string
	maxFileSize   int64
	maxSearchDirs int
	extensions    map[string]struct{}
	policies      []BlacklistPolicy
	gate          *Gate
	backups       *BackupManager

	usageMu    sync.Mutex
	usageCache *gocache.Cache
}

// Stats is the point-in-time operational summary exposed to callers.
type Stats struct {
	ActiveOperations int    `json:"active_operations"`
	RootDirectory    string `json:"root_directory"`
	MaxFileSize      int64  `json:"max_file_size"`
}

// New creates a new Sandbox instance confined to the configured root. The
// root is normalized to an absolute path; it is not created if missing since
// pointing the sandbox at a non-existent root is a deployment error we want
// surfaced loudly by the first operation.
func New(cfg Config) (*Sandbox, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, errors.Wrap(err, "sandbox: failed to resolve root directory")
	}

	exts := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, e := range cfg.AllowedExtensions {
		e = strings.ToLower(e)
		if e != "" && !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = struct{}{}
	}

	backupDir := cfg.BackupDirectory
	if backupDir == "" {
		backupDir = ".backups"
	}

	maxDirs := cfg.MaxSearchDirectories
	if maxDirs < 1 {
		maxDirs = 512
	}

	return &Sandbox{
		root:          filepath.Clean(root),
		maxFileSize:   cfg.MaxFileSize,
		maxSearchDirs: maxDirs,
		extensions:    exts,
		policies:      cfg.Policies,
		gate:          NewGate(cfg.MaxConcurrent),
		backups:       NewBackupManager(filepath.Join(root, backupDir)),
		usageCache:    gocache.New(time.Minute, 2*time.Minute),
	}, nil
}

// Path returns the root path for the sandbox instance.
func (s *Sandbox) Path() string {
	return s.root
}

// Gate returns the admission gate bounding concurrent operations.
func (s *Sandbox) Gate() *Gate {
	return s.gate
}

// Backups returns the backup manager for this sandbox.
func (s *Sandbox) Backups() *BackupManager {
	return s.backups
}

// MaxFileSize returns the maximum file size in bytes, zero meaning unlimited.
func (s *Sandbox) MaxFileSize() int64 {
	return s.maxFileSize
}

// Stats returns the current operational summary for the sandbox.
func (s *Sandbox) Stats() Stats {
	return Stats{
		ActiveOperations: s.gate.Active(),
		RootDirectory:    s.root,
		MaxFileSize:      s.maxFileSize,
	}
}

// exceedsLimit checks a byte count against the configured maximum file size.
func (s *Sandbox) exceedsLimit(n int64) bool {
	return s.maxFileSize > 0 && n > s.maxFileSize
}

// Generates a log entry with context about this sandbox instance attached.
func (s *Sandbox) log() *log.Entry {
	return log.WithField("subsystem", "sandbox").WithField("root", s.root)
}
