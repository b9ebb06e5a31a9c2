package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/marmos91/yak/cmd/yakd/commands"
)

// Build-time variables injected via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := fang.Execute(context.Background(), commands.GetRootCmd()); err != nil {
		os.Exit(1)
	}
}
