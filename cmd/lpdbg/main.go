package main

import (
	"os"

	"github.com/go-delve/lpdbg/cmd/lpdbg/cmds"
)

func main() {
	if err := cmds.New().Execute(); err != nil {
		os.Exit(1)
	}
}
