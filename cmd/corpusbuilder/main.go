package main

import (
	"fmt"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/corpusbuilder/cmd/corpusbuilder/commands"
	"git.home.luguber.info/inful/corpusbuilder/internal/version"
)

func main() {
	var cli commands.CLI
	ctx := kong.Parse(&cli,
		kong.Name("corpusbuilder"),
		kong.Description("Builds a plaintext documentation corpus from versioned project repositories."),
		kong.UsageOnError(),
		kong.Vars{
			"version": fmt.Sprintf("corpusbuilder %s (commit %s, built %s)",
				version.Version, version.GitCommit, version.BuildTime),
		},
	)
	err := ctx.Run(&commands.Global{}, &cli)
	ctx.FatalIfErrorf(err)
}
