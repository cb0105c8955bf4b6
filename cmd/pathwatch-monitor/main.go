package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pathwatch-io/pathwatch/pkg/cmd"
	"github.com/pathwatch-io/pathwatch/pkg/configuration"
	"github.com/pathwatch-io/pathwatch/pkg/filesystem/watching"
	"github.com/pathwatch-io/pathwatch/pkg/identifier"
	"github.com/pathwatch-io/pathwatch/pkg/logging"
	"github.com/pathwatch-io/pathwatch/pkg/monitor"
	"github.com/pathwatch-io/pathwatch/pkg/pathwatch"
	"github.com/pathwatch-io/pathwatch/pkg/protocol"
)

// effectiveLogLevel computes the log level from (in order of precedence) the
// command line, the debug environment switch, and the global configuration.
func effectiveLogLevel(config *configuration.Configuration) (logging.Level, error) {
	name := rootConfiguration.logLevel
	if name == "" && pathwatch.DebugEnabled {
		name = "debug"
	}
	if name == "" {
		name = config.LogLevel()
	}
	if name == "" {
		return logging.LevelInfo, nil
	}
	level, ok := logging.NameToLevel(name)
	if !ok {
		return logging.LevelDisabled, errors.Errorf("unknown log level: %s", name)
	}
	return level, nil
}

func rootMain(command *cobra.Command, arguments []string) {
	// Print version information, if requested.
	if rootConfiguration.version {
		fmt.Println(pathwatch.Version)
		return
	}

	// Print legal information, if requested.
	if rootConfiguration.legal {
		fmt.Print(pathwatch.LegalNotice)
		return
	}

	// The monitor is driven entirely over standard input/output and accepts
	// no positional arguments.
	if len(arguments) != 0 {
		cmd.Fatal(errors.New("unexpected arguments"))
	}

	// Load the global configuration, if any.
	configurationPath, err := configuration.GlobalConfigurationPath()
	if err != nil {
		cmd.Fatal(errors.Wrap(err, "unable to compute configuration path"))
	}
	config, err := configuration.Load(configurationPath)
	if err != nil {
		cmd.Fatal(errors.Wrap(err, "unable to load configuration"))
	}

	// Configure logging.
	level, err := effectiveLogLevel(config)
	if err != nil {
		cmd.Fatal(err)
	}
	logging.SetLevel(level)

	// Generate an instance identifier so that log output from concurrently
	// running monitors (the parent spawns one per replica pair) remains
	// attributable.
	instance, err := identifier.New(identifier.PrefixMonitor)
	if err != nil {
		cmd.Fatal(errors.Wrap(err, "unable to generate instance identifier"))
	}
	logger := logging.RootLogger.Sublogger(instance)

	// Create the filesystem watcher.
	watcher, err := watching.NewWatcher(config.EventBufferSize())
	if err != nil {
		cmd.Fatal(errors.Wrap(err, "unable to create filesystem watcher"))
	}

	// Create the transport on standard input/output.
	transport := protocol.NewTransport(os.Stdin, os.Stdout, logger.Sublogger("protocol"))

	// Create the monitor. This announces the protocol version to the parent.
	m, err := monitor.New(transport, watcher, config.StrictWait(), logger.Sublogger("monitor"))
	if err != nil {
		cmd.Fatal(errors.Wrap(err, "unable to initialize monitor"))
	}
	logger.Debugf("Monitor running protocol version %s", pathwatch.ProtocolVersion)

	// Serve until end-of-input or failure. The watcher and producer
	// Goroutines are daemons; process exit reaps them.
	if err := m.Run(); err != nil {
		cmd.Fatal(err)
	}
}

var rootCommand = &cobra.Command{
	Use:   "pathwatch-monitor",
	Short: "Pathwatch monitors filesystem changes on behalf of a parent file synchronizer.",
	Run:   rootMain,
}

var rootConfiguration struct {
	// help indicates the presence of the -h/--help flag.
	help bool
	// version indicates the presence of the -V/--version flag.
	version bool
	// legal indicates the presence of the -l/--legal flag.
	legal bool
	// logLevel stores the value of the --log-level flag.
	logLevel string
}

// bindFlags binds the root command's flags to the root configuration. We
// manually add help to override the default message, but Cobra still
// implements it automatically.
func bindFlags(flags *pflag.FlagSet) {
	flags.BoolVarP(&rootConfiguration.help, "help", "h", false, "Show help information")
	flags.BoolVarP(&rootConfiguration.version, "version", "V", false, "Show version information")
	flags.BoolVarP(&rootConfiguration.legal, "legal", "l", false, "Show legal information")
	flags.StringVar(&rootConfiguration.logLevel, "log-level", "", "Set the log level (disabled|error|warn|info|debug|trace)")
}

func init() {
	// Bind command line flags.
	bindFlags(rootCommand.Flags())

	// Disable Cobra's command sorting behavior. By default, it sorts commands
	// alphabetically in the help output.
	cobra.EnableCommandSorting = false

	// Disable Cobra's use of mousetrap. The monitor is spawned by the parent
	// synchronizer, never from a console, and mousetrap would refuse such
	// launches on Windows.
	cobra.MousetrapHelpText = ""
}

func main() {
	// Execute the root command.
	if err := rootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}
