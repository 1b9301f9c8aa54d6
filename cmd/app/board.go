package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/starford/octopad/internal"
	"github.com/starford/octopad/internal/authpw"
	"github.com/starford/octopad/internal/models"
	"github.com/starford/octopad/internal/syncer"
)

type boardAction func(ctx context.Context, cmd *cli.Command, b *internal.Board) error

// withBoard opens the board, runs fn and waits for queued remote writes.
func withBoard(fn boardAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		board, err := internal.OpenBoard(cfg, internal.NewLogger(cfg, os.Stderr))
		if err != nil {
			return err
		}
		defer board.Close()
		return fn(ctx, cmd, board)
	}
}

func argAt(cmd *cli.Command, i int, name string) (string, error) {
	if v := cmd.Args().Get(i); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("missing argument <%s>", name)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTiers(tiers []models.Tier) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "POS\tID\tNAME\tCODE\tPADS\tSTATE")
	for _, t := range tiers {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n", t.Position, t.ID, t.Name, t.ShareCode, len(t.Pads), t.SyncState())
	}
	return tw.Flush()
}

func boardCommand() *cli.Command {
	return &cli.Command{
		Name:  "board",
		Usage: "Inspect and edit the local board",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List tiers in display order",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Print tiers as JSON"},
				},
				Action: withBoard(func(ctx context.Context, cmd *cli.Command, b *internal.Board) error {
					tiers := b.Coordinator.Tiers()
					if cmd.Bool("json") {
						return printJSON(tiers)
					}
					return printTiers(tiers)
				}),
			},
			{
				Name:  "sync",
				Usage: "Reconcile with the server and push named tiers",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "watch", Aliases: []string{"w"}, Usage: "Keep pushing when the cache file changes"},
				},
				Action: withBoard(func(ctx context.Context, cmd *cli.Command, b *internal.Board) error {
					tiers := b.Coordinator.Reconcile(ctx, b.UserID)
					if err := b.Coordinator.Push(ctx, b.UserID); err != nil {
						return err
					}
					if !cmd.Bool("watch") {
						return printTiers(tiers)
					}
					ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
					defer stop()
					return b.Watch(ctx)
				}),
			},
			{
				Name:      "rename",
				Usage:     "Rename a tier; an empty name makes it local only",
				ArgsUsage: "<tier-id> [name]",
				Action: withBoard(func(ctx context.Context, cmd *cli.Command, b *internal.Board) error {
					tierID, err := argAt(cmd, 0, "tier-id")
					if err != nil {
						return err
					}
					tier, err := b.Coordinator.Mutate(ctx, b.UserID, tierID, syncer.RenameTier{Name: cmd.Args().Get(1)})
					if err != nil {
						return err
					}
					return printJSON(tier)
				}),
			},
			{
				Name:      "delete",
				Usage:     "Delete a tier",
				ArgsUsage: "<tier-id>",
				Action: withBoard(func(ctx context.Context, cmd *cli.Command, b *internal.Board) error {
					tierID, err := argAt(cmd, 0, "tier-id")
					if err != nil {
						return err
					}
					return b.Coordinator.DeleteTier(ctx, b.UserID, tierID)
				}),
			},
			{
				Name:      "reorder",
				Usage:     "Move the given tiers to the top in this order",
				ArgsUsage: "<tier-id>...",
				Action: withBoard(func(ctx context.Context, cmd *cli.Command, b *internal.Board) error {
					if cmd.Args().Len() == 0 {
						return fmt.Errorf("missing argument <tier-id>")
					}
					tiers, err := b.Coordinator.Reorder(ctx, b.UserID, cmd.Args().Slice())
					if err != nil {
						return err
					}
					return printTiers(tiers)
				}),
			},
			{
				Name:      "resolve",
				Usage:     "Look a share code up locally, then on the server",
				ArgsUsage: "<code>",
				Action: withBoard(func(ctx context.Context, cmd *cli.Command, b *internal.Board) error {
					code, err := argAt(cmd, 0, "code")
					if err != nil {
						return err
					}
					tier, err := b.Resolver.Resolve(ctx, code)
					if err != nil {
						return err
					}
					return printJSON(tier)
				}),
			},
			{
				Name:      "import",
				Usage:     "Copy a shared tier onto this board",
				ArgsUsage: "<code>",
				Action: withBoard(func(ctx context.Context, cmd *cli.Command, b *internal.Board) error {
					code, err := argAt(cmd, 0, "code")
					if err != nil {
						return err
					}
					tier, err := b.Resolver.Import(ctx, b.UserID, code)
					if err != nil {
						return err
					}
					return printJSON(tier)
				}),
			},
			padCommand(),
		},
	}
}

func padCommand() *cli.Command {
	return &cli.Command{
		Name:  "pad",
		Usage: "Edit the pads of a tier",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Place a pad in a slot, replacing any pad already there",
				ArgsUsage: "<tier-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url", Required: true, Usage: "Launch URL"},
					&cli.StringFlag{Name: "name", Usage: "Display name"},
					&cli.StringFlag{Name: "icon", Usage: "Icon URL"},
					&cli.IntFlag{Name: "position", Aliases: []string{"p"}, Usage: "Slot 0-7"},
				},
				Action: withBoard(func(ctx context.Context, cmd *cli.Command, b *internal.Board) error {
					tierID, err := argAt(cmd, 0, "tier-id")
					if err != nil {
						return err
					}
					pad := models.Pad{
						Name:     cmd.String("name"),
						URL:      cmd.String("url"),
						IconURL:  cmd.String("icon"),
						Position: int(cmd.Int("position")),
					}
					tier, err := b.Coordinator.Mutate(ctx, b.UserID, tierID, syncer.AddPad{Pad: pad})
					if err != nil {
						return err
					}
					return printJSON(tier)
				}),
			},
			{
				Name:      "rm",
				Usage:     "Remove a pad",
				ArgsUsage: "<tier-id> <pad-id>",
				Action: withBoard(func(ctx context.Context, cmd *cli.Command, b *internal.Board) error {
					tierID, err := argAt(cmd, 0, "tier-id")
					if err != nil {
						return err
					}
					padID, err := argAt(cmd, 1, "pad-id")
					if err != nil {
						return err
					}
					tier, err := b.Coordinator.Mutate(ctx, b.UserID, tierID, syncer.DeletePad{PadID: padID})
					if err != nil {
						return err
					}
					return printJSON(tier)
				}),
			},
		},
	}
}

func registerCommand() *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "Create an account on the configured server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "Display name"},
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "password", Required: true, Sources: cli.EnvVars("OCTOPAD_PASSWORD")},
		},
		Action: withBoard(func(ctx context.Context, cmd *cli.Command, b *internal.Board) error {
			id, err := b.Register(ctx, authpw.RegisterRequest{
				Name:     cmd.String("name"),
				Email:    cmd.String("email"),
				Password: cmd.String("password"),
			})
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		}),
	}
}
