package cmds

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/go-delve/lpdbg/cmd/lpdbg/cmds/helphelpers"
	"github.com/go-delve/lpdbg/pkg/config"
	"github.com/go-delve/lpdbg/pkg/libprocess"
	"github.com/go-delve/lpdbg/pkg/logflags"
	"github.com/go-delve/lpdbg/pkg/printer"
	"github.com/go-delve/lpdbg/pkg/proc"
	"github.com/go-delve/lpdbg/pkg/proc/core"
	"github.com/go-delve/lpdbg/pkg/proc/native"
	"github.com/go-delve/lpdbg/pkg/terminal"
	"github.com/go-delve/lpdbg/pkg/version"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string
	// noColor disables colored output regardless of the configuration.
	noColor bool
	// initFile is the path to initialization file.
	initFile string
	// cmdList are the commands executed instead of starting the prompt.
	cmdList []string

	conf *config.Config
)

const lpdbgCommandLongDesc = `lpdbg inspects the runtime state of libprocess programs.

lpdbg reads the memory of a live process or of a core dump and decodes the
data structures of the libprocess actor runtime: the process manager, the
table of running processes and their ids.

Once a target is open lpdbg starts an interactive prompt, type 'help' to list
the available commands. Commands can also be run non interactively:

` + "`lpdbg --cmd process core ./master ./core.1234`"

// New returns an initialized command tree.
func New() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:   "lpdbg",
		Short: "lpdbg is a debugger for libprocess programs.",
		Long:  lpdbgCommandLongDesc,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			conf, err = config.LoadConfig()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
			}
			if noColor {
				conf.NoColor = true
			}
			return nil
		},
	}

	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", `Comma separated list of components that should produce debug output (see 'lpdbg help log')`)
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor (see 'lpdbg help log').")
	rootCommand.PersistentFlags().BoolVarP(&noColor, "no-color", "", false, "Disables colored output.")
	rootCommand.PersistentFlags().StringVar(&initFile, "init", "", "Init file, executed by the terminal client.")
	rootCommand.PersistentFlags().StringArrayVarP(&cmdList, "cmd", "c", nil, "Command to execute instead of starting the prompt, can be repeated.")

	// 'attach' subcommand.
	attachCommand := &cobra.Command{
		Use:   "attach pid [executable]",
		Short: "Attach to a running process and inspect it.",
		Long: `Attach to an already running libprocess program and inspect it.

The memory of the process is read while it keeps running, lpdbg never stops
it. If the executable is not specified /proc/<pid>/exe is used.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := strconv.Atoi(args[0])
			if err != nil || pid <= 0 {
				return fmt.Errorf("invalid pid: %s", args[0])
			}
			exe := ""
			if len(args) > 1 {
				exe = args[1]
			}
			os.Exit(execute(func() (*proc.Target, error) {
				return native.Attach(pid, exe)
			}))
			return nil
		},
	}
	rootCommand.AddCommand(attachCommand)

	coreCommand := &cobra.Command{
		Use:   "core <executable> <core>",
		Short: "Examine a core dump.",
		Long: `Examine a core dump.

The core command will open the specified core file and the associated
executable and let you examine the state of the libprocess runtime when the
core dump was taken.

Currently supports linux ELF core files.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				return errors.New("you must provide a core file and an executable")
			}
			return cmd.Root().PersistentPreRunE(cmd, args)
		},
		Run: func(cmd *cobra.Command, args []string) {
			exe, corePath := args[0], args[1]
			os.Exit(execute(func() (*proc.Target, error) {
				return core.OpenCore(corePath, exe)
			}))
		},
	}
	rootCommand.AddCommand(coreCommand)

	// 'version' subcommand.
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "lpdbg\n%s\n", version.LpdbgVersion)
			if log {
				fmt.Fprintln(cmd.OutOrStdout(), version.BuildInfo())
			}
		},
	}
	rootCommand.AddCommand(versionCommand)

	rootCommand.AddCommand(&cobra.Command{
		Use:   "log",
		Short: "Help about logging flags.",
		Long: `Logging can be enabled by specifying the --log flag and using the
--log-output flag to select which components should produce logs.

The argument of --log-output must be a comma separated list of component
names selected from this list:


	proc		Log symbol table and type loading
	core		Log core file loading
	native		Log memory reads of live processes
	libprocess	Log the decoding of libprocess data structures
	terminal	Log terminal commands

Additionally --log-dest can be used to specify where the logs should be
written.
If the argument is a number it will be interpreted as a file descriptor,
otherwise as a file path.
`,
	})

	usage := rootCommand.UsageFunc()
	rootCommand.SetUsageFunc(func(cmd *cobra.Command) error {
		helphelpers.Prepare(cmd)
		return usage(cmd)
	})

	rootCommand.DisableAutoGenTag = true

	return rootCommand
}

func execute(open func() (*proc.Target, error)) int {
	if err := logflags.Setup(log, logOutput, logDest); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer logflags.Close()

	target, err := open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not open target: %v\n", err)
		return 1
	}
	defer target.Close()

	return run(target, conf)
}

// run starts a terminal on target with the libprocess printers
// registered.
func run(target *proc.Target, conf *config.Config) int {
	if conf == nil {
		conf = &config.Config{}
	}
	styler := terminal.NewStyler(conf, os.Stdout)
	opts := &libprocess.Options{Types: target.BinInfo}
	if err := terminal.ConfigurePrinters(opts, conf, styler); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return 1
	}
	libprocess.Register(printer.Default, opts)

	term := terminal.New(target, conf)
	term.SetPrinterOptions(opts)
	term.InitFile = initFile

	if len(cmdList) > 0 {
		defer term.Close()
		if err := term.Execute(cmdList); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	}

	status, err := term.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	return status
}
