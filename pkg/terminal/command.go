// Package terminal implements functions for responding to user
// input and dispatching to the printers.
package terminal

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/cosiner/argv"
	"github.com/derekparker/trie"

	"github.com/go-delve/lpdbg/pkg/logflags"
	"github.com/go-delve/lpdbg/pkg/proc"
	"github.com/go-delve/lpdbg/pkg/terminal/colorize"
)

// maxSourceDepth bounds the nesting of source commands.
const maxSourceDepth = 16

type callContext struct {
	sourceDepth int
}

type cmdfunc func(t *Term, ctx callContext, args string) error

type command struct {
	aliases        []string
	builtinAliases []string
	group          commandGroup
	helpMsg        string
	cmdFn          cmdfunc
}

// Returns true if the command string matches one of the aliases for this command
func (c command) match(cmdstr string) bool {
	for _, v := range c.aliases {
		if v == cmdstr {
			return true
		}
	}
	return false
}

// Commands represents the commands of the lpdbg terminal.
type Commands struct {
	cmds []command
}

var (
	errNoTarget = errors.New("no target")
	noCmdError  = errors.New("command not available")
)

// DebugCommands returns a Commands struct with default commands defined.
func DebugCommands() *Commands {
	c := &Commands{}

	c.cmds = []command{
		{aliases: []string{"help", "h"}, cmdFn: c.help, helpMsg: `Prints the help message.

	help [command]

Type "help" followed by the name of a command for more information about it.`},
		{aliases: []string{"process", "ps"}, group: dataCmds, cmdFn: processCommand, helpMsg: `Lists the processes of the libprocess process manager.

	process [expression]

Without arguments the process manager is found through the global pointer named by the process-manager-symbol configuration option (process::process_manager by default). An expression evaluating to a process::ProcessManager, or a pointer to one, can be given instead.

The output lists the number of running processes followed by the id of each process and the address of its process::ProcessBase.`},
		{aliases: []string{"print", "p"}, group: dataCmds, cmdFn: printVar, helpMsg: `Evaluate an expression.

	print <expression>

The expression is a global variable, possibly followed by member accesses, or a cast of an address:

	print process::process_manager
	print *(process::ProcessBase*)0x7f3a4c001200
	print (process::UPID*)0x7f3a4c001200

Values of libprocess types are printed by their printers, other values are printed member by member.`},
		{aliases: []string{"whatis"}, group: dataCmds, cmdFn: whatisCommand, helpMsg: `Prints type of an expression.

	whatis <expression>`},
		{aliases: []string{"types"}, group: dataCmds, cmdFn: types, helpMsg: `Print list of types

	types [prefix]

Lists the fully qualified names of the types of the target starting with prefix.`},
		{aliases: []string{"globals"}, group: dataCmds, cmdFn: globals, helpMsg: `Print list of global variables.

	globals [prefix]`},
		{aliases: []string{"source"}, group: scriptCmds, cmdFn: c.sourceCommand, helpMsg: `Executes a file containing a list of lpdbg commands

	source <path>

If path ends with the .star extension it will be interpreted as a starlark script. If path is a single '-' character an interactive starlark interpreter will start instead. Type 'exit' to exit.`},
		{aliases: []string{"config"}, group: scriptCmds, cmdFn: configureCmd, helpMsg: `Changes configuration parameters.

	config -list

Show all configuration parameters.

	config -save

Saves the configuration file to disk, overwriting the current configuration file.

	config <parameter> <value>

Changes the value of a configuration parameter.

	config alias <command> <alias>
	config alias <alias>

Defines <alias> as an alias to <command> or removes an alias.`},
		{aliases: []string{"transcript"}, group: scriptCmds, cmdFn: transcript, helpMsg: `Appends command output to a file.

	transcript [-t] [-x] <output file>
	transcript -off

Output of lpdbg's command is appended to the specified output file. If '-t' is specified and the output file exists it is truncated. If '-x' is specified output to stdout is suppressed instead.

Using the -off option disables the transcript.`},
		{aliases: []string{"exit", "quit", "q"}, cmdFn: exitCommand, helpMsg: `Exit the debugger.

	exit`},
	}

	return c
}

// Register custom commands. Expects cf to be a func of type cmdfunc,
// returning only an error.
func (c *Commands) Register(cmdstr string, cf cmdfunc, helpMsg string) {
	for i := range c.cmds {
		if c.cmds[i].match(cmdstr) {
			c.cmds[i].cmdFn = cf
			c.cmds[i].helpMsg = helpMsg
			return
		}
	}

	c.cmds = append(c.cmds, command{aliases: []string{cmdstr}, cmdFn: cf, helpMsg: helpMsg})
}

// Find will look up the command function for the given command input.
// If it cannot find the command it will default to noCmdAvailable().
func (c *Commands) Find(cmdstr string) cmdfunc {
	if cmdstr == "" {
		return nullCommand
	}

	for _, v := range c.cmds {
		if v.match(cmdstr) {
			return v.cmdFn
		}
	}

	return noCmdAvailable
}

// nameOf returns the primary name of the command cmdstr is an alias of.
func (c *Commands) nameOf(cmdstr string) string {
	for _, v := range c.cmds {
		if v.match(cmdstr) {
			return v.aliases[0]
		}
	}
	return ""
}

func (c *Commands) aliasTrie() *trie.Trie {
	tr := trie.New()
	for _, cmd := range c.cmds {
		for _, alias := range cmd.aliases {
			tr.Add(alias, nil)
		}
	}
	return tr
}

// CallWithContext takes a command and a context that command should be executed in.
func (c *Commands) CallWithContext(cmdstr string, t *Term, ctx callContext) error {
	vals := strings.SplitN(strings.TrimSpace(cmdstr), " ", 2)
	cmdname := vals[0]
	var args string
	if len(vals) > 1 {
		args = strings.TrimSpace(vals[1])
	}
	if logflags.Terminal() {
		logflags.TerminalLogger().Debugf("command %q args %q", cmdname, args)
	}
	return c.Find(cmdname)(t, ctx, args)
}

// Call takes a command to execute.
func (c *Commands) Call(cmdstr string, t *Term) error {
	return c.CallWithContext(cmdstr, t, callContext{})
}

// Merge takes aliases defined in the config struct and merges them with the default aliases.
func (c *Commands) Merge(allAliases map[string][]string) {
	for i := range c.cmds {
		if c.cmds[i].builtinAliases != nil {
			c.cmds[i].aliases = append(c.cmds[i].aliases[:0], c.cmds[i].builtinAliases...)
		}
	}
	for i := range c.cmds {
		if aliases, ok := allAliases[c.cmds[i].aliases[0]]; ok {
			if c.cmds[i].builtinAliases == nil {
				c.cmds[i].builtinAliases = make([]string, len(c.cmds[i].aliases))
				copy(c.cmds[i].builtinAliases, c.cmds[i].aliases)
			}
			c.cmds[i].aliases = append(c.cmds[i].aliases, aliases...)
		}
	}
}

func noCmdAvailable(t *Term, ctx callContext, args string) error {
	return noCmdError
}

func nullCommand(t *Term, ctx callContext, args string) error {
	return nil
}

func (c *Commands) help(t *Term, ctx callContext, args string) error {
	if args != "" {
		for _, cmd := range c.cmds {
			for _, alias := range cmd.aliases {
				if alias == args {
					fmt.Fprintln(t.stdout, cmd.helpMsg)
					return nil
				}
			}
		}
		return noCmdError
	}

	fmt.Fprintln(t.stdout, "The following commands are available:")

	for _, cgd := range commandGroupDescriptions {
		fmt.Fprintf(t.stdout, "\n%s:\n", cgd.description)
		w := new(tabwriter.Writer)
		w.Init(t.stdout, 0, 8, 0, '-', 0)
		for _, cmd := range c.cmds {
			if cmd.group != cgd.group {
				continue
			}
			h := cmd.helpMsg
			if idx := strings.Index(h, "\n"); idx >= 0 {
				h = h[:idx]
			}
			if len(cmd.aliases) > 1 {
				fmt.Fprintf(w, "    %s (alias: %s) \t %s\n", cmd.aliases[0], strings.Join(cmd.aliases[1:], " | "), h)
			} else {
				fmt.Fprintf(w, "    %s \t %s\n", cmd.aliases[0], h)
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintln(t.stdout)
	fmt.Fprintln(t.stdout, "Type help followed by a command for full documentation.")
	return nil
}

func processCommand(t *Term, ctx callContext, args string) error {
	fmt.Fprintln(t.stdout, t.styler.Style(colorize.LabelStyle, "listing processes..."))
	if t.target == nil {
		return errNoTarget
	}
	var v *proc.Variable
	var err error
	if args != "" {
		v, err = proc.EvalExpression(t.target, args)
	} else {
		v, err = t.target.Global(t.conf.ManagerSymbol())
		if err != nil {
			err = fmt.Errorf("could not find the process manager: %w", err)
		}
	}
	if err != nil {
		return err
	}
	out, err := t.formatValue(v)
	if err != nil {
		if errors.Is(err, proc.ErrNilPointer) && args == "" {
			return fmt.Errorf("%s is null, libprocess is not initialized: %w", t.conf.ManagerSymbol(), err)
		}
		return err
	}
	t.printString(out)
	return nil
}

func printVar(t *Term, ctx callContext, args string) error {
	if len(args) == 0 {
		return fmt.Errorf("not enough arguments")
	}
	if t.target == nil {
		return errNoTarget
	}
	v, err := proc.EvalExpression(t.target, args)
	if err != nil {
		return err
	}
	out, err := t.formatValue(v)
	if err != nil {
		return err
	}
	t.printString(out)
	return nil
}

func whatisCommand(t *Term, ctx callContext, args string) error {
	if len(args) == 0 {
		return fmt.Errorf("not enough arguments")
	}
	if t.target == nil {
		return errNoTarget
	}
	v, err := proc.EvalExpression(t.target, args)
	if err != nil {
		return err
	}
	fmt.Fprintln(t.stdout, v.TypeString())
	if v.RealType != nil && v.RealType.String() != v.TypeString() {
		fmt.Fprintf(t.stdout, "Real type: %s\n", v.RealType.String())
	}
	if p := t.printers.Lookup(v); p != nil {
		fmt.Fprintf(t.stdout, "Printer: %T\n", p)
	}
	return nil
}

func (t *Term) printSortedStrings(v []string) {
	for _, d := range v {
		fmt.Fprintln(t.stdout, d)
	}
}

func types(t *Term, ctx callContext, args string) error {
	if t.target == nil {
		return errNoTarget
	}
	t.printSortedStrings(t.target.BinInfo.TypesMatching(args))
	return nil
}

func globals(t *Term, ctx callContext, args string) error {
	if t.target == nil {
		return errNoTarget
	}
	var r []string
	for _, g := range t.target.BinInfo.Globals() {
		if strings.HasPrefix(g, args) {
			r = append(r, g)
		}
	}
	t.printSortedStrings(r)
	return nil
}

// splitArgs splits args the way a shell would.
func splitArgs(args string) ([]string, error) {
	if strings.TrimSpace(args) == "" {
		return nil, nil
	}
	v, err := argv.Argv(args,
		func(s string) (string, error) {
			return "", fmt.Errorf("Backtick not supported in '%s'", s)
		},
		nil)
	if err != nil {
		return nil, err
	}
	if len(v) != 1 {
		return nil, fmt.Errorf("illegal commandline '%s'", args)
	}
	return v[0], nil
}

func (c *Commands) sourceCommand(t *Term, ctx callContext, args string) error {
	w, err := splitArgs(args)
	if err != nil {
		return err
	}
	if len(w) != 1 {
		return fmt.Errorf("wrong number of arguments: source <filename>")
	}
	path := w[0]

	if filepath.Ext(path) == ".star" {
		_, err := t.starlarkEnv.Execute(path, nil, "main", nil)
		return err
	}

	if path == "-" {
		return t.starlarkEnv.REPL()
	}

	if ctx.sourceDepth >= maxSourceDepth {
		return fmt.Errorf("source files nested too deeply")
	}
	ctx.sourceDepth++
	return c.executeFile(t, path, ctx)
}

func transcript(t *Term, ctx callContext, args string) error {
	w, err := splitArgs(args)
	if err != nil {
		return err
	}
	truncate := false
	fileOnly := false
	disable := false
	path := ""
	for _, arg := range w {
		switch arg {
		case "-x":
			fileOnly = true
		case "-t":
			truncate = true
		case "-off":
			disable = true
		default:
			if path != "" || strings.HasPrefix(arg, "-") {
				return fmt.Errorf("unrecognized option %q", arg)
			}
			path = arg
		}
	}

	if disable {
		if path != "" {
			return errors.New("-off option specified with an output path")
		}
		return t.stdout.CloseTranscript()
	}

	if path == "" {
		return errors.New("no output path specified")
	}

	flags := os.O_APPEND | os.O_WRONLY | os.O_CREATE
	if truncate {
		flags |= os.O_TRUNC
	}
	fh, err := os.OpenFile(path, flags, 0660)
	if err != nil {
		return err
	}

	if err := t.stdout.CloseTranscript(); err != nil {
		return err
	}

	t.stdout.TranscribeTo(fh, fileOnly)
	return nil
}

// ExitRequestError is returned when the user
// exits lpdbg.
type ExitRequestError struct{}

func (ere ExitRequestError) Error() string {
	return ""
}

func exitCommand(t *Term, ctx callContext, args string) error {
	return ExitRequestError{}
}

func (c *Commands) executeFile(t *Term, name string, ctx callContext) error {
	fh, err := os.Open(name)
	if err != nil {
		return err
	}
	defer fh.Close()

	scanner := bufio.NewScanner(fh)
	lineno := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineno++

		if line == "" || line[0] == '#' {
			continue
		}

		if err := c.CallWithContext(line, t, ctx); err != nil {
			if _, isExitRequest := err.(ExitRequestError); isExitRequest {
				return err
			}
			fmt.Fprintf(t.stdout, "%s:%d: %v\n", name, lineno, err)
		}
	}

	return scanner.Err()
}
