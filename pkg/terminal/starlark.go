package terminal

import (
	"github.com/go-delve/lpdbg/pkg/libprocess"
	"github.com/go-delve/lpdbg/pkg/proc"
	"github.com/go-delve/lpdbg/pkg/terminal/starbind"
)

type starlarkContext struct {
	term *Term
}

var _ starbind.Context = starlarkContext{}

func (ctx starlarkContext) Target() *proc.Target {
	return ctx.term.target
}

func (ctx starlarkContext) RegisterCommand(name, helpMsg string, fn func(args string) error) {
	cmdfn := func(t *Term, ctx callContext, args string) error {
		return fn(args)
	}
	ctx.term.cmds.Register(name, cmdfn, helpMsg)
}

func (ctx starlarkContext) CallCommand(cmdstr string) error {
	return ctx.term.cmds.Call(cmdstr, ctx.term)
}

func (ctx starlarkContext) ManagerSymbol() string {
	return ctx.term.conf.ManagerSymbol()
}

func (ctx starlarkContext) PrinterOptions() *libprocess.Options {
	return ctx.term.printerOpts
}

func (ctx starlarkContext) FormatValue(v *proc.Variable) (string, error) {
	return ctx.term.formatValue(v)
}
