package main

import (
	"log/slog"
	"os"
	_ "time/tzdata"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/bedshift/cmd/bedshift/commands"
	"git.home.luguber.info/inful/bedshift/internal/foundation/errors"
	"git.home.luguber.info/inful/bedshift/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("bedshift"),
		kong.Description("Move your bedtime earlier, one confirmed night at a time."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	err := parser.Run(&commands.Global{Logger: slog.Default(), Out: os.Stdout}, cli)
	errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}
