package config

import (
	"os"
	"sync"

	"emperror.dev/errors"
	"github.com/asaskevich/govalidator"
	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

// DefaultLocation is the default path the daemon loads its configuration
// from when no --config flag is provided.
const DefaultLocation = "/etc/warden/config.yml"

type Configuration struct {
	// Determines if the daemon runs in debug mode. This value is ignored if
	// the debug flag is passed on the command line.
	Debug bool `default:"false" yaml:"debug"`

	Api     ApiConfiguration     `yaml:"api"`
	System  SystemConfiguration  `yaml:"system"`
	Sandbox SandboxConfiguration `yaml:"sandbox"`
}

// ApiConfiguration defines the HTTP surface exposed by the daemon.
type ApiConfiguration struct {
	// The interface the webserver binds to.
	Host string `default:"0.0.0.0" yaml:"host"`

	// The port the webserver binds to.
	Port int `default:"8080" yaml:"port"`

	// The bearer token requests to this instance must present.
	Token string `valid:"required" yaml:"token"`
}

// SystemConfiguration defines where the daemon keeps its data and logs.
type SystemConfiguration struct {
	// The directory all file operations are confined to.
	RootDirectory string `default:"/var/lib/warden/data" valid:"required" yaml:"root_directory"`

	// The directory log files are written to.
	LogDirectory string `default:"/var/log/warden" yaml:"log_directory"`
}

// SandboxConfiguration carries the immutable settings handed to the sandbox
// at construction.
type SandboxConfiguration struct {
	// The maximum size in bytes for any file read or written. Zero disables
	// the limit.
	MaxFileSize int64 `default:"1048576" yaml:"max_file_size"`

	// The maximum number of operations that may be in-flight at once.
	// Operations beyond this are rejected immediately, not queued.
	MaxConcurrentOperations int `default:"8" yaml:"max_concurrent_operations"`

	// The ceiling on directories processed by a single search before the
	// traversal is cut off and reported as truncated.
	MaxSearchDirectories int `default:"512" yaml:"max_search_directories"`

	// File extensions operations are allowed to touch.
	AllowedExtensions []string `default:"[\".txt\", \".md\", \".json\", \".yml\", \".yaml\", \".csv\", \".log\"]" yaml:"allowed_extensions"`

	// Whether files without any extension may be touched. Kept separate
	// from the extension list because a zero-valued slice element would be
	// re-populated from the default tag when the defaults are applied.
	AllowExtensionless bool `default:"true" yaml:"allow_extensionless"`

	// Relative paths containing any of these substrings are denied. The
	// backup directory is denied by default so snapshots cannot be read or
	// mutated back through the API.
	DenySubstrings []string `default:"[\".backups\"]" yaml:"deny_substrings"`

	// Filenames beginning with Prefix are denied unless they end with one
	// of the allowed suffixes.
	DenyPrefixes []DenyPrefix `yaml:"deny_prefixes"`

	// Gitignore-style patterns evaluated after the lists above.
	DenyPatterns []string `yaml:"deny_patterns"`

	// The name of the directory under the root that backups are stored in.
	BackupDirectory string `default:".backups" yaml:"backup_directory"`
}

// DenyPrefix is the configuration form of the prefix-with-exceptions
// blacklist rule.
type DenyPrefix struct {
	Prefix          string   `yaml:"prefix"`
	AllowedSuffixes []string `yaml:"allowed_suffixes"`
}

var (
	mu      sync.RWMutex
	_config *Configuration
)

// Set stores the global configuration instance used across the daemon.
func Set(c *Configuration) {
	mu.Lock()
	_config = c
	mu.Unlock()
}

// Get returns the global configuration instance. The returned pointer must
// be treated as read-only.
func Get() *Configuration {
	mu.RLock()
	defer mu.RUnlock()
	return _config
}

// FromFile reads the configuration from the provided path, applying struct
// defaults first and expanding any environment variable references in the
// file before unmarshaling it.
func FromFile(path string) (*Configuration, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: could not read configuration file")
	}

	c := new(Configuration)
	if err := defaults.Set(c); err != nil {
		return nil, errors.Wrap(err, "config: could not apply default values")
	}

	// Replace environment variable references within the configuration file
	// with their values from the host system.
	b = []byte(os.ExpandEnv(string(b)))

	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, errors.Wrap(err, "config: could not decode configuration file")
	}
	if _, err := govalidator.ValidateStruct(c); err != nil {
		return nil, errors.Wrap(err, "config: configuration failed validation")
	}
	return c, nil
}
