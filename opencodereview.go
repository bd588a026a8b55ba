package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/opencodereview/cmd"
)

const (
	version = "0.1.0"
)

func main() {
	app := &cli.App{
		Name:    "opencodereview",
		Usage:   "Review code changes through an agent-editable session file",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Load configuration from `FILE`",
			},
		},
		Commands: []*cli.Command{
			cmd.ReviewCommand(),
			cmd.CommentCommand(),
			cmd.MarkCommand(),
			cmd.AnalyzeCommand(),
			cmd.ExportCommand(),
			cmd.SessionsCommand(),
			cmd.WatchCommand(),
			cmd.ConfigCommand(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
