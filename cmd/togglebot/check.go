package main

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/keshon/togglebot/internal/config"
	"github.com/keshon/togglebot/internal/cooldown"
	"github.com/keshon/togglebot/internal/platform"
	"github.com/keshon/togglebot/pkg/action"
	"github.com/keshon/togglebot/pkg/cmd"
)

func newCheckCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Load and validate the configuration without connecting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadMerged(g.configPath)
			if err != nil {
				printLoadErrors(cmd.ErrOrStderr(), err)
				return errors.New("configuration is invalid")
			}
			rt, err := platform.NewRuntime(cfg, cooldown.NewManager(), platform.RuntimeOptions{})
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), cfg)
			if unknown := printFunctions(cmd.OutOrStdout(), cfg, rt.Executor.Registry()); unknown > 0 {
				return fmt.Errorf("%d unknown function reference(s)", unknown)
			}
			return nil
		},
	}
}

// printLoadErrors writes one line per joined error.
func printLoadErrors(w io.Writer, err error) {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		for _, e := range joined.Unwrap() {
			fmt.Fprintln(w, "error:", e)
		}
		return
	}
	fmt.Fprintln(w, "error:", err)
}

func printSummary(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "files:     %s\n", strings.Join(cfg.Files, ", "))
	fmt.Fprintf(w, "trigger:   %s\n", cfg.Trigger)
	fmt.Fprintf(w, "platforms: %s\n", strings.Join(cfg.PlatformNames(), ", "))

	fmt.Fprintf(w, "commands:  %d\n", len(cfg.Commands))
	for _, c := range cfg.Commands {
		line := "  " + cfg.Trigger + c.Name
		if len(c.Aliases) > 0 {
			line += " (" + strings.Join(c.Aliases, ", ") + ")"
		}
		if d := c.Cooldown.Max(); d > 0 {
			line += " cooldown " + d.Round(time.Millisecond).String()
		}
		fmt.Fprintf(w, "%s [%s]\n", line, strings.Join(c.Platforms, ","))
	}

	fmt.Fprintf(w, "matches:   %d\n", len(cfg.Matches))
	for _, m := range cfg.Matches {
		fmt.Fprintf(w, "  %s [%s]\n", m, strings.Join(m.Platforms, ","))
	}

	for _, warning := range cfg.Warnings {
		fmt.Fprintln(w, "warning:", warning)
	}
}

// printFunctions lists the registered functions and reports references that
// nothing implements. It returns how many were found.
func printFunctions(w io.Writer, cfg *config.Config, registry *cmd.Registry) int {
	all := registry.GetAll()
	fmt.Fprintf(w, "functions: %d\n", len(all))
	for _, f := range all {
		fmt.Fprintf(w, "  %s: %s\n", f.Name(), f.Description())
	}

	refs := make(map[string]action.FunctionRef)
	for _, c := range cfg.Commands {
		for _, f := range c.Action.Functions() {
			refs[f.String()] = f
		}
	}
	for _, m := range cfg.Matches {
		for _, f := range m.Action.Functions() {
			refs[f.String()] = f
		}
	}

	names := make([]string, 0, len(refs))
	for name := range refs {
		names = append(names, name)
	}
	slices.Sort(names)

	unknown := 0
	for _, name := range names {
		if registry.Get(refs[name]) == nil {
			fmt.Fprintln(w, "error: unknown function", name)
			unknown++
		}
	}
	return unknown
}
