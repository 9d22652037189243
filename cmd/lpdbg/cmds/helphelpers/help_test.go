package helphelpers

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestPrepareHidesFlags(t *testing.T) {
	root := &cobra.Command{Use: "lpdbg"}
	root.PersistentFlags().Bool("no-color", false, "")
	core := &cobra.Command{Use: "core", Run: func(*cobra.Command, []string) {}}
	version := &cobra.Command{Use: "version", Run: func(*cobra.Command, []string) {}}
	root.AddCommand(core, version)

	Prepare(core)
	if root.PersistentFlags().Lookup("no-color").Hidden {
		t.Fatal("flag hidden for the core command")
	}

	Prepare(version)
	if !root.PersistentFlags().Lookup("no-color").Hidden {
		t.Fatal("flag not hidden for the version command")
	}
}
