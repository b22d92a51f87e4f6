package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/NYTimes/logrotate"
	"github.com/apex/log"
	"github.com/apex/log/handlers/multi"
	"github.com/mitchellh/colorstring"
	"github.com/spf13/cobra"

	"github.com/wardenfs/warden/config"
	"github.com/wardenfs/warden/loggers/cli"
	"github.com/wardenfs/warden/router"
	"github.com/wardenfs/warden/sandbox"
	"github.com/wardenfs/warden/system"
)

var (
	configPath  = config.DefaultLocation
	debug       = false
	showVersion = false
)

var root = &cobra.Command{
	Use:   "warden",
	Short: "A sandboxed file-access daemon for automation agents",
	Run:   rootCmdRun,
}

func init() {
	root.PersistentFlags().BoolVar(&showVersion, "version", false, "show the version and exit")
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultLocation, "set the location for the configuration file")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "pass in order to run warden in debug mode")
}

// Execute runs the root command for the daemon.
func Execute() {
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmdRun(*cobra.Command, []string) {
	if showVersion {
		fmt.Println(system.Version)
		os.Exit(0)
	}

	c, err := config.FromFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %s\n", err)
		os.Exit(1)
	}
	if debug {
		c.Debug = true
	}
	config.Set(c)

	printLogo()
	if err := configureLogging(c.System.LogDirectory, c.Debug); err != nil {
		panic(err)
	}

	log.WithField("path", configPath).Info("loading configuration from path")
	if c.Debug {
		log.Debug("running in debug mode")
	}

	s, err := newSandbox(c)
	if err != nil {
		log.WithField("error", err).Fatal("failed to configure the sandbox")
		return
	}
	log.WithField("root", s.Path()).Info("configured sandbox root directory")

	addr := fmt.Sprintf("%s:%d", c.Api.Host, c.Api.Port)
	log.WithField("address", addr).Info("serving warden api")
	if err := router.Configure(s).Run(addr); err != nil {
		log.WithField("error", err).Fatal("failed to start the api webserver")
	}
}

// newSandbox maps the file configuration onto a sandbox instance, assembling
// the blacklist policies in their declared order: substrings first, then
// prefix rules, then gitignore-style patterns.
func newSandbox(c *config.Configuration) (*sandbox.Sandbox, error) {
	var policies []sandbox.BlacklistPolicy
	for _, p := range c.Sandbox.DenySubstrings {
		policies = append(policies, sandbox.SubstringPolicy(p))
	}
	for _, p := range c.Sandbox.DenyPrefixes {
		policies = append(policies, sandbox.PrefixPolicy{
			Prefix:          p.Prefix,
			AllowedSuffixes: p.AllowedSuffixes,
		})
	}
	if len(c.Sandbox.DenyPatterns) > 0 {
		policies = append(policies, sandbox.NewPatternPolicy(c.Sandbox.DenyPatterns...))
	}

	extensions := c.Sandbox.AllowedExtensions
	if c.Sandbox.AllowExtensionless {
		// The sandbox treats an empty-string member as permission for
		// extensionless files.
		extensions = append(append([]string(nil), extensions...), "")
	}

	return sandbox.New(sandbox.Config{
		Root:                 c.System.RootDirectory,
		MaxFileSize:          c.Sandbox.MaxFileSize,
		MaxConcurrent:        c.Sandbox.MaxConcurrentOperations,
		MaxSearchDirectories: c.Sandbox.MaxSearchDirectories,
		AllowedExtensions:    extensions,
		Policies:             policies,
		BackupDirectory:      c.Sandbox.BackupDirectory,
	})
}

// Configures the global logger to write to both the colorized console output
// and a rotatable log file on disk.
func configureLogging(logDir string, debug bool) error {
	if err := os.MkdirAll(logDir, 0o700); err != nil {
		return err
	}

	p := filepath.Join(logDir, "warden.log")
	w, err := logrotate.NewFile(p)
	if err != nil {
		return err
	}

	log.SetLevel(log.InfoLevel)
	if debug {
		log.SetLevel(log.DebugLevel)
	}
	log.SetHandler(multi.New(cli.Default, cli.New(w.File, false)))
	log.WithField("path", p).Info("writing log files to disk")
	return nil
}

func printLogo() {
	fmt.Println()
	fmt.Println(colorstring.Color("[blue][bold]warden[reset], sandboxed file access, v" + system.Version))
	fmt.Println()
}
