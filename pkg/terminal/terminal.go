package terminal

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/derekparker/trie"
	"github.com/go-delve/liner"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/go-delve/lpdbg/pkg/config"
	"github.com/go-delve/lpdbg/pkg/libprocess"
	"github.com/go-delve/lpdbg/pkg/logflags"
	"github.com/go-delve/lpdbg/pkg/printer"
	"github.com/go-delve/lpdbg/pkg/proc"
	"github.com/go-delve/lpdbg/pkg/terminal/colorize"
	"github.com/go-delve/lpdbg/pkg/terminal/starbind"
)

const historyFile string = ".lpdbg_history"

// Term represents the terminal running lpdbg.
type Term struct {
	target      *proc.Target
	conf        *config.Config
	printers    *printer.Registry
	styler      *colorize.Styler
	prompt      string
	line        *liner.State
	cmds        *Commands
	stdout      *transcriptWriter
	starlarkEnv *starbind.Env
	printerOpts *libprocess.Options
	InitFile    string
}

// New returns a new Term inspecting target. Values are printed through
// printer.Default.
func New(target *proc.Target, conf *config.Config) *Term {
	return newTerm(target, conf, printer.Default, NewStyler(conf, os.Stdout), colorable.NewColorableStdout())
}

func newTerm(target *proc.Target, conf *config.Config, printers *printer.Registry, styler *colorize.Styler, w io.Writer) *Term {
	if conf == nil {
		conf = &config.Config{}
	}
	cmds := DebugCommands()
	if conf.Aliases != nil {
		cmds.Merge(conf.Aliases)
	}

	t := &Term{
		target:   target,
		conf:     conf,
		printers: printers,
		styler:   styler,
		prompt:   "(lpdbg) ",
		cmds:     cmds,
		stdout:   &transcriptWriter{w: w},
	}
	t.starlarkEnv = starbind.New(starlarkContext{t}, t.stdout)
	return t
}

// NewStyler returns the Styler used for output written to out: colors
// are used only when out is a terminal, TERM is not "dumb" and the
// configuration does not disable them.
func NewStyler(conf *config.Config, out *os.File) *colorize.Styler {
	if conf != nil && conf.NoColor {
		return colorize.Plain()
	}
	if strings.ToLower(os.Getenv("TERM")) == "dumb" {
		return colorize.Plain()
	}
	if out == nil || !isatty.IsTerminal(out.Fd()) {
		return colorize.Plain()
	}
	return colorize.New(colorize.DefaultEscapes())
}

// Styler returns the Styler used by the terminal.
func (t *Term) Styler() *colorize.Styler {
	return t.styler
}

// Close returns the terminal to its previous mode.
func (t *Term) Close() {
	if t.line != nil {
		t.line.Close()
	}
	t.stdout.CloseTranscript()
}

func (t *Term) sigintGuard(ch <-chan os.Signal) {
	for range ch {
		t.starlarkEnv.Cancel()
		fmt.Fprintf(os.Stderr, "received SIGINT, interrupting current command\n")
	}
}

// Run begins running lpdbg in the terminal.
func (t *Term) Run() (int, error) {
	t.line = liner.NewLiner()
	defer t.Close()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT)
	go t.sigintGuard(ch)

	t.line.SetCompleter(t.complete)

	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Printf("Unable to load history file: %v.", err)
	}

	f, err := os.Open(fullHistoryFile)
	if err != nil {
		f, err = os.Create(fullHistoryFile)
		if err != nil {
			fmt.Printf("Unable to open history file: %v. History will not be saved for this session.", err)
		}
	}
	if f != nil {
		t.line.ReadHistory(f)
		f.Close()
	}
	fmt.Fprintln(t.stdout, "Type 'help' for list of commands.")

	if err := t.runInitFile(); err != nil {
		if _, ok := err.(ExitRequestError); ok {
			return t.handleExit()
		}
		fmt.Fprintf(os.Stderr, "Error executing init file: %s\n", err)
	}

	for {
		cmdstr, err := t.promptForInput()
		if err != nil {
			if err == io.EOF {
				fmt.Fprintln(t.stdout, "exit")
				return t.handleExit()
			}
			return 1, fmt.Errorf("Prompt for input failed.\n")
		}
		t.stdout.Echo(t.prompt + cmdstr + "\n")

		if err := t.cmds.Call(cmdstr, t); err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit()
			}
			fmt.Fprintf(os.Stderr, "Command failed: %s\n", err)
		}
		t.stdout.Flush()
	}
}

func (t *Term) runInitFile() error {
	if t.InitFile == "" {
		return nil
	}
	return t.cmds.sourceCommand(t, callContext{}, t.InitFile)
}

// Execute runs the init file and then each of cmdstrs, stopping at the
// first failure.
func (t *Term) Execute(cmdstrs []string) error {
	defer t.stdout.Flush()
	if err := t.runInitFile(); err != nil {
		if _, ok := err.(ExitRequestError); ok {
			return nil
		}
		return fmt.Errorf("init file: %v", err)
	}
	for _, cmdstr := range cmdstrs {
		if err := t.cmds.Call(cmdstr, t); err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return nil
			}
			return fmt.Errorf("%s: %v", cmdstr, err)
		}
	}
	return nil
}

// complete completes command names and, for the commands taking a type
// or a global as argument, type and global names.
func (t *Term) complete(line string) (c []string) {
	cmdstr, args, hasArgs := strings.Cut(line, " ")
	if !hasArgs {
		c = t.cmds.aliasTrie().PrefixSearch(strings.ToLower(cmdstr))
		sort.Strings(c)
		return c
	}
	if t.target == nil {
		return nil
	}
	var names []string
	switch t.cmds.nameOf(cmdstr) {
	case "types":
		names = scopeNames(t.target.BinInfo.TypesMatching(args), args)
	case "print", "whatis", "globals":
		tr := trie.New()
		for _, g := range t.target.BinInfo.Globals() {
			tr.Add(g, nil)
		}
		names = tr.PrefixSearch(args)
	}
	for _, name := range names {
		c = append(c, cmdstr+" "+name)
	}
	return c
}

// scopeNames truncates every name at the first scope separator that
// follows prefix, outside of template arguments, so that nested types
// are completed one scope at a time. The result is sorted and has no
// duplicates.
func scopeNames(names []string, prefix string) []string {
	seen := make(map[string]bool)
	var r []string
	for _, name := range names {
		depth := 0
		for i := 0; i < len(name); i++ {
			switch name[i] {
			case '<', '(':
				depth++
			case '>', ')':
				depth--
			case ':':
				if depth == 0 && i >= len(prefix) && strings.HasPrefix(name[i:], "::") {
					name = name[:i]
				}
			}
		}
		if !seen[name] {
			seen[name] = true
			r = append(r, name)
		}
	}
	sort.Strings(r)
	return r
}

func (t *Term) promptForInput() (string, error) {
	l, err := t.line.Prompt(t.prompt)
	if err != nil {
		return "", err
	}

	l = strings.TrimSuffix(l, "\n")
	if l != "" {
		t.line.AppendHistory(l)
	}

	return l, nil
}

func (t *Term) handleExit() (int, error) {
	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Println("Error saving history file:", err)
	} else {
		if f, err := os.OpenFile(fullHistoryFile, os.O_RDWR, 0666); err == nil {
			_, err = t.line.WriteHistory(f)
			if err != nil {
				fmt.Println("readline history error:", err)
			}
			f.Close()
		}
	}

	if logflags.Terminal() {
		logflags.TerminalLogger().Debugf("exiting")
	}
	return 0, nil
}
