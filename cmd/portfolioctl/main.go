package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"portfolio/internal/backend"
	"portfolio/internal/config"
	"portfolio/internal/logging"
	"portfolio/internal/services"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func main() {
	cfg, _ := config.Load()

	app := &cli.Command{
		Name:  "portfolioctl",
		Usage: "Maintenance commands for the portfolio backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "backend",
				Usage:   "store backend (postgres | firestore)",
				Value:   cfg.StoreBackend,
				Sources: cli.EnvVars("STORE_BACKEND"),
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "development logging",
			},
		},
		Commands: []*cli.Command{
			migrateCommand(cfg),
			recountCommand(cfg),
			grantRoleCommand(cfg),
			seedOwnerCommand(cfg),
			refreshScoresCommand(cfg),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// env 一次命令运行所需的后端和服务
type env struct {
	log     *zap.Logger
	backend *backend.Backend
	authors *services.AuthorDirectory
}

func (e *env) Close() {
	e.backend.Close()
	e.log.Sync()
}

func open(ctx context.Context, cmd *cli.Command, cfg *config.Config) (*env, error) {
	log, err := logging.New(!cmd.Bool("verbose"))
	if err != nil {
		return nil, err
	}
	c := *cfg
	c.StoreBackend = cmd.String("backend")

	b, err := backend.Open(ctx, &c, log)
	if err != nil {
		return nil, err
	}
	authors, err := services.NewAuthorDirectory(b.Store, 1000, time.Minute, log)
	if err != nil {
		b.Close()
		return nil, err
	}
	return &env{log: log, backend: b, authors: authors}, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func migrateCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create or update the SQL schema (no-op on firestore)",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := open(ctx, cmd, cfg)
			if err != nil {
				return err
			}
			defer e.Close()
			if err := e.backend.Migrate(); err != nil {
				return err
			}
			fmt.Println("migrated")
			return nil
		},
	}
}

func recountCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "recount",
		Usage: "Recompute denormalized counters and repair drift",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "project", Usage: "only this project id"},
			&cli.StringFlag{Name: "user", Usage: "only this user id"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := open(ctx, cmd, cfg)
			if err != nil {
				return err
			}
			defer e.Close()

			recount := services.NewRecountService(e.backend.Store, nil, e.log)
			switch {
			case cmd.String("project") != "":
				report, err := recount.RecountProject(ctx, services.SystemActor, cmd.String("project"))
				if err != nil {
					return err
				}
				return printJSON(report)
			case cmd.String("user") != "":
				report, err := recount.RecountUser(ctx, services.SystemActor, cmd.String("user"))
				if err != nil {
					return err
				}
				return printJSON(report)
			}

			reports, err := recount.RecountAll(ctx, services.SystemActor)
			if perr := printJSON(reports); perr != nil && err == nil {
				err = perr
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "%d documents repaired\n", len(reports))
			return nil
		},
	}
}

func grantRoleCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "grant-role",
		Usage:     "Set a user's role (user | developer | admin)",
		ArgsUsage: "<user-id> <role>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() < 2 {
				return fmt.Errorf("usage: portfolioctl grant-role <user-id> <role>")
			}
			e, err := open(ctx, cmd, cfg)
			if err != nil {
				return err
			}
			defer e.Close()

			users, err := services.NewUserService(e.backend.Store, e.authors, e.log)
			if err != nil {
				return err
			}
			user, err := users.GrantRole(ctx, services.SystemActor, cmd.Args().Get(0), cmd.Args().Get(1))
			if err != nil {
				return err
			}
			return printJSON(user)
		},
	}
}

func seedOwnerCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "seed-owner",
		Usage:     "Create the local admin account if it does not exist",
		ArgsUsage: "<email> <password>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Value: cfg.OwnerName, Usage: "display name"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() < 2 {
				return fmt.Errorf("usage: portfolioctl seed-owner <email> <password>")
			}
			e, err := open(ctx, cmd, cfg)
			if err != nil {
				return err
			}
			defer e.Close()

			users, err := services.NewUserService(e.backend.Store, e.authors, e.log)
			if err != nil {
				return err
			}
			return users.SeedOwner(ctx, cmd.Args().Get(0), cmd.String("name"), cmd.Args().Get(1))
		},
	}
}

func refreshScoresCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "refresh-scores",
		Usage: "Recompute popularity scores of all projects",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := open(ctx, cmd, cfg)
			if err != nil {
				return err
			}
			defer e.Close()

			feed := services.NewProjectFeed(e.backend.Store, e.authors, nil, time.Second, e.log)
			n, err := feed.RefreshNow(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%d projects refreshed\n", n)
			return nil
		},
	}
}
