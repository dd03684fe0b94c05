package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/keshon/togglebot/internal/config"
	"github.com/keshon/togglebot/internal/docs"
)

func newDocsCmd(g *globals) *cobra.Command {
	var tmplPath, out string

	c := &cobra.Command{
		Use:   "docs",
		Short: "Write a Markdown reference of the configured commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadMerged(g.configPath)
			if err != nil {
				printLoadErrors(cmd.ErrOrStderr(), err)
				return errors.New("configuration is invalid")
			}
			if out == "-" {
				return docs.Render(cmd.OutOrStdout(), cfg, "")
			}
			return docs.WriteFile(cfg, tmplPath, out)
		},
	}
	c.Flags().StringVarP(&out, "out", "o", "COMMANDS.md", `output file, "-" for stdout`)
	c.Flags().StringVar(&tmplPath, "template", "", "text/template file to render instead of the built-in one")
	return c
}
