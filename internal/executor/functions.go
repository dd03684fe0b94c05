package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime"
	"sort"
	"strings"

	"github.com/keshon/togglebot/internal/config"
	"github.com/keshon/togglebot/pkg/action"
	"github.com/keshon/togglebot/pkg/argspec"
	"github.com/keshon/togglebot/pkg/cmd"
)

// LinksRef is the function listing the links table. Its links come from the
// constants table of the same name.
const LinksRef = "@tb/links"

// DefaultCrateIndex is where @tb/crate looks crates up.
const DefaultCrateIndex = "https://lib.rs/crates/"

var (
	crateArgs = argspec.List{argspec.MustParse("string![A-Za-z0-9_-]{1,64}<!>Give me a crate name, like serde")}
	banArgs   = argspec.List{argspec.MustParse("string...!<!>Who should not pass?")}
)

func (x *Executor) builtins() []cmd.Command {
	engine := x.engine
	return []cmd.Command{
		&cmd.Func{
			FuncName: "@tb/commands",
			Desc:     "List the commands available on this platform",
			RunFunc: func(_ context.Context, inv *cmd.Invocation) (string, error) {
				return listCommands(engine.Config().Trigger, engine.Commands(inv.Platform)), nil
			},
		},
		&cmd.Func{
			FuncName: LinksRef,
			Desc:     "List the configured links",
			RunFunc: func(_ context.Context, inv *cmd.Invocation) (string, error) {
				return listLinks(inv.Platform, inv.Constants), nil
			},
		},
		&cmd.Func{
			FuncName: "@tb/crate",
			Desc:     "Link a crate on lib.rs if it exists",
			RunFunc: withArgs(crateArgs, func(ctx context.Context, _ *cmd.Invocation, args []argspec.Value) (string, error) {
				return x.checkCrate(ctx, args[0].Text)
			}),
		},
		&cmd.Func{
			FuncName: "@tb/ban",
			Desc:     "Pretend to ban someone",
			RunFunc: withArgs(banArgs, func(_ context.Context, inv *cmd.Invocation, args []argspec.Value) (string, error) {
				if inv.Platform == "discord" {
					return args[0].Text + ", **YOU SHALL NOT PASS!!**", nil
				}
				return args[0].Text + ", YOU SHALL NOT PASS!!", nil
			}),
		},
		&cmd.Func{
			FuncName: "@tb/schedule",
			Desc:     "Show the stream schedule",
			RunFunc: func(_ context.Context, inv *cmd.Invocation) (string, error) {
				return formatSchedule(inv.Constants), nil
			},
		},
		&cmd.Func{
			FuncName: "@tb/togglebot",
			Desc:     "Tell people about the bot",
			RunFunc: func(_ context.Context, inv *cmd.Invocation) (string, error) {
				n := len(engine.Commands(inv.Platform))
				return fmt.Sprintf("ToggleBot here, built with %s and answering %d commands. Try %scommands",
					runtime.Version(), n, engine.Config().Trigger), nil
			},
		},
	}
}

// withArgs binds the invocation's arguments to list before calling run. A
// binding failure becomes the reply.
func withArgs(list argspec.List, run func(ctx context.Context, inv *cmd.Invocation, args []argspec.Value) (string, error)) func(context.Context, *cmd.Invocation) (string, error) {
	return func(ctx context.Context, inv *cmd.Invocation) (string, error) {
		var tokens []string
		for _, a := range inv.Args {
			if a.Present {
				tokens = append(tokens, strings.Fields(a.Text)...)
			}
		}
		args, err := list.Bind(tokens)
		if err != nil {
			var f *argspec.Failure
			if errors.As(err, &f) {
				return f.Message, nil
			}
			return "", err
		}
		return run(ctx, inv, args)
	}
}

func (x *Executor) checkCrate(ctx context.Context, name string) (string, error) {
	link := x.crateIndex + url.PathEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "ToggleBot")

	resp, err := x.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("crate %s: %w", name, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return link, nil
	case http.StatusNotFound:
		return fmt.Sprintf("Crate `%s` doesn't exist", name), nil
	}
	return "", fmt.Errorf("crate %s: unexpected status %d", name, resp.StatusCode)
}

// formatSchedule renders the @tb/schedule table: start, finish, off_days
// (comma separated) and timezone.
func formatSchedule(table map[string]string) string {
	get := func(key, fallback string) string {
		if v := strings.TrimSpace(table[key]); v != "" {
			return v
		}
		return fallback
	}

	offDaysRaw, ok := table["off_days"]
	if !ok {
		offDaysRaw = "Saturday, Sunday"
	}
	var offDays []string
	for _, d := range strings.Split(offDaysRaw, ",") {
		if d = strings.TrimSpace(d); d != "" {
			offDays = append(offDays, d)
		}
	}

	days := "Every day"
	switch n := len(offDays); n {
	case 0:
	case 1:
		days += ", except " + offDays[0]
	default:
		days += ", except " + strings.Join(offDays[:n-1], ", ") + " and " + offDays[n-1]
	}

	return fmt.Sprintf("%s | Starting around %s, finishing around %s | Timezone %s",
		days, get("start", "07:00~08:00am"), get("finish", "04:00pm"), get("timezone", "CET"))
}

func listCommands(trigger string, commands []*config.Command) string {
	if len(commands) == 0 {
		return "No commands available"
	}
	names := make([]string, len(commands))
	for i, c := range commands {
		names[i] = trigger + c.Name
		if len(c.Aliases) > 0 {
			names[i] += " (or " + strings.Join(c.Aliases, ", ") + ")"
		}
	}
	return "Available commands: " + strings.Join(names, ", ")
}

func listLinks(platform string, links map[string]string) string {
	names := make([]string, 0, len(links))
	for name := range links {
		names = append(names, name)
	}
	sort.Strings(names)

	if platform == "discord" {
		lines := make([]string, len(names))
		for i, name := range names {
			lines[i] = name + ": <" + links[name] + ">"
		}
		return strings.Join(lines, "\n")
	}
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + ": " + links[name]
	}
	return strings.Join(parts, " | ")
}

// locals registers the functions section as @local/<name>. A body is a
// template over the invocation's arguments and the constants tables.
func locals(cfg *config.Config) []cmd.Command {
	names := make([]string, 0, len(cfg.Functions))
	for name := range cfg.Functions {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]cmd.Command, 0, len(names))
	for _, name := range names {
		body := action.Template(cfg.Functions[name])
		out = append(out, &cmd.Func{
			FuncName: "@local/" + name,
			Desc:     fmt.Sprintf("Local function %s", name),
			RunFunc: func(_ context.Context, inv *cmd.Invocation) (string, error) {
				ins, err := action.Resolve(body, inv.Platform, cfg.Constants)
				if err != nil {
					return "", err
				}
				constants := ins.Constants
				for k, v := range inv.Constants {
					if _, ok := constants[k]; !ok {
						constants[k] = v
					}
				}
				return Render(ins.Template, inv.Args, constants), nil
			},
		})
	}
	return out
}
