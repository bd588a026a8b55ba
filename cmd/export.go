package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/opencodereview/internal/export"
)

// ExportCommand returns the export command.
func ExportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export the review session for sharing",
		Flags: append(selectorFlags(),
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format (markdown or json)",
				Value:   string(export.FormatMarkdown),
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write to `FILE` instead of stdout",
			},
		),
		Action: runExport,
	}
}

func runExport(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(c.String("format"))
	if err != nil {
		return err
	}

	env, err := prepare(c.Context, c, cfg)
	if err != nil {
		return err
	}
	sess, err := env.loadExistingSession()
	if err != nil {
		return err
	}

	out, err := export.Render(sess, format)
	if err != nil {
		return fmt.Errorf("failed to render export: %w", err)
	}

	if path := c.String("output"); path != "" {
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return fmt.Errorf("failed to write export: %w", err)
		}
		fmt.Fprintf(c.App.Writer, "Exported review to %s\n", path)
		return nil
	}
	_, err = c.App.Writer.Write(out)
	return err
}
