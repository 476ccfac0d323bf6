package main

import (
	"context"
	"os"

	"github.com/dmitrijs2005/moodkeeper/internal/buildinfo"
	"github.com/dmitrijs2005/moodkeeper/internal/client/cli"
	"github.com/fatih/color"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		buildinfo.PrintBuildData(os.Stdout)
		return
	}

	ctx := context.Background()
	if err := cli.Execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
