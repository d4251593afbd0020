package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"sewstat/cli"
)

var CLI struct {
	Version kong.VersionFlag
	Config  string `help:"Config file path; searches for config.yaml when empty." type:"path"`

	Serve       cli.ServeCmd      `cmd:"" help:"Run the HTTP API server." default:"1"`
	Report      cli.ReportCmd     `cmd:"" help:"Print a report or write an export."`
	Ingest      cli.IngestCmd     `cmd:"" help:"Pull logs from the upstream source into the lake."`
	Mart        cli.MartCmd       `cmd:"" help:"Rebuild the daily mode stats mart."`
	AdminToken  cli.AdminTokenCmd `cmd:"" help:"Issue a bearer token for the admin endpoints."`
	SourceToken struct {
		Set    cli.SourceTokenSetCmd    `cmd:"" help:"Store the upstream API token in the OS keyring."`
		Delete cli.SourceTokenDeleteCmd `cmd:"" help:"Remove the upstream API token from the OS keyring."`
	} `cmd:"" help:"Manage the upstream API token."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("sewstat"),
		kong.Description("Sewing machine log analytics: operator, machine and line reports"),
		kong.UsageOnError(),
		kong.Vars{"version": "v0.1.0"},
	)

	appCtx := &cli.Context{
		Ctx:        context.Background(),
		ConfigPath: CLI.Config,
		Out:        os.Stdout,
	}

	if err := ctx.Run(appCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
