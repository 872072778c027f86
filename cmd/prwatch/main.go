package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/marcin-skalski/prwatch/internal/config"
)

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("prwatch"),
		kong.Description("Track GitHub pull requests, watch their CI and rerun what failed."),
		kong.UsageOnError(),
		kong.Vars{"default_config": config.DefaultPath()},
	)

	if err := ctx.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
