package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/pysugar/codex-profiles/internal/logging"
)

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("codexprofiles"),
		kong.Description("Manage named Codex credential profiles and keep auth.json in sync."),
		kong.UsageOnError(),
	)

	log, err := logging.NewLogger(cli.Verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	app, err := buildApp(&cli, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx.FatalIfErrorf(ctx.Run(app))
}
