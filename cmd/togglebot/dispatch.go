package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keshon/togglebot/internal/config"
	"github.com/keshon/togglebot/internal/cooldown"
	"github.com/keshon/togglebot/internal/dispatch"
	"github.com/keshon/togglebot/internal/platform"
)

func newDispatchCmd(g *globals) *cobra.Command {
	var msg dispatch.Message

	c := &cobra.Command{
		Use:   "dispatch [flags] MESSAGE...",
		Short: "Dispatch messages offline and print the replies",
		Long: "Dispatch each MESSAGE in order as if it was posted on --platform. " +
			"Cooldowns start empty and are shared between the messages.",
		Example: `  togglebot dispatch --platform twitch '!lark me'
  togglebot dispatch -p discord '!links' '!links'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadMerged(g.configPath)
			if err != nil {
				printLoadErrors(cmd.ErrOrStderr(), err)
				return errors.New("configuration is invalid")
			}
			if _, ok := cfg.Platform(msg.Platform); !ok {
				return fmt.Errorf("platform %q is not configured", msg.Platform)
			}

			rt, err := platform.NewRuntime(cfg, cooldown.NewManager(), platform.RuntimeOptions{
				PerInvoker:      g.env.PerInvokerCooldown,
				FunctionTimeout: g.env.FunctionTimeout,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, text := range args {
				m := msg
				m.Text = text
				res := rt.Engine.Dispatch(m)
				fmt.Fprintf(out, "%s\t%s", res.Outcome, res.Target)

				switch res.Outcome {
				case dispatch.ArgumentError:
					fmt.Fprintf(out, "\t%s", res.Message)
				case dispatch.OnCooldown:
					fmt.Fprintf(out, "\t%s left", res.Remaining)
				case dispatch.ResolveFailed:
					fmt.Fprintf(out, "\t%v", res.Err)
				case dispatch.Dispatched:
					reply, err := rt.Executor.Execute(cmd.Context(), m, res)
					if err != nil {
						fmt.Fprintf(out, "\terror: %v", err)
					} else {
						fmt.Fprintf(out, "\t%s", reply)
					}
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	c.Flags().StringVarP(&msg.Platform, "platform", "p", "twitch", "platform the messages are posted on")
	c.Flags().StringVarP(&msg.Sender, "sender", "s", "viewer", "sender name")
	c.Flags().StringVar(&msg.Channel, "channel", "local", "channel name")
	return c
}
