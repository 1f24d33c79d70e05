package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Black-And-White-Club/photoseason/app"
	"github.com/Black-And-White-Club/photoseason/app/eventbus"
	"github.com/Black-And-White-Club/photoseason/app/modules/ranking"
	rankingservice "github.com/Black-And-White-Club/photoseason/app/modules/ranking/application"
	rankinghandlers "github.com/Black-And-White-Club/photoseason/app/modules/ranking/infrastructure/handlers"
	rankingjwt "github.com/Black-And-White-Club/photoseason/app/modules/ranking/infrastructure/jwt"
	rankingqueue "github.com/Black-And-White-Club/photoseason/app/modules/ranking/infrastructure/queue"
	"github.com/Black-And-White-Club/photoseason/config"
	"github.com/Black-And-White-Club/photoseason/db/bundb"
	"github.com/Black-And-White-Club/photoseason/pkg/observability"
	"github.com/Black-And-White-Club/photoseason/pkg/timeparse"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cliApp := &cli.App{
		Name:  "photoseason",
		Usage: "ranking and season rollover jobs",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: "config.yaml", Usage: "path to the configuration file", EnvVars: []string{"CONFIG_FILE"}},
		},
		Commands: []*cli.Command{
			serveCommand(),
			runCommand(),
			enqueueCommand(),
			triggerCommand(),
			jobsCommand(),
			migrateCommand(),
			tokenCommand(),
		},
	}

	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

type env struct {
	cfg *config.Config
	obs *observability.Observability
}

func load(c *cli.Context) (*env, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	obs, err := observability.New(c.Context, cfg.Observability)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, obs: obs}, nil
}

// close flushes pending spans.
func (e *env) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.obs.Shutdown(ctx); err != nil {
		e.obs.Logger.Error("Failed to flush traces", "error", err)
	}
}

var atFlag = &cli.StringFlag{
	Name:  "at",
	Usage: `when the job should run, e.g. "2025-04-01", RFC 3339, or "tomorrow 9am" (default now)`,
}

// jobArgs reads the job kind argument and the --at flag.
func jobArgs(c *cli.Context, cfg *config.Config) (rankingservice.JobKind, time.Time, error) {
	if c.NArg() != 1 {
		return "", time.Time{}, cli.Exit("exactly one job kind is required", 2)
	}
	kind, err := rankingservice.ParseJobKind(c.Args().First())
	if err != nil {
		return "", time.Time{}, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return "", time.Time{}, err
	}
	at, err := timeparse.NewParser().Parse(c.String("at"), time.Now(), loc)
	if err != nil {
		return "", time.Time{}, err
	}
	return kind, at, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run workers, schedules, the trigger subscriber and the HTTP API",
		Action: func(c *cli.Context) error {
			e, err := load(c)
			if err != nil {
				return err
			}
			defer e.close()
			application, err := app.NewApp(c.Context, e.cfg, e.obs)
			if err != nil {
				return err
			}
			defer func() {
				if err := application.Close(); err != nil {
					e.obs.Logger.Error("Error during shutdown", "error", err)
				}
			}()
			return application.Run(c.Context)
		},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "run one job in-process, bypassing the queue",
		ArgsUsage: "<job>",
		Flags:     []cli.Flag{atFlag},
		Action: func(c *cli.Context) error {
			e, err := load(c)
			if err != nil {
				return err
			}
			defer e.close()
			kind, at, err := jobArgs(c, e.cfg)
			if err != nil {
				return err
			}

			repo, client, err := app.NewRepository(c.Context, e.cfg, e.obs)
			if err != nil {
				return err
			}
			if client != nil {
				defer client.Close()
			}

			service, err := ranking.NewService(e.cfg, e.obs, repo)
			if err != nil {
				return err
			}
			return service.RunJob(c.Context, kind, at)
		},
	}
}

// withQueue opens an insert-only job queue for one command.
func withQueue(c *cli.Context, e *env, fn func(*rankingqueue.Service) error) error {
	db, err := bundb.Open(c.Context, e.cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()

	queue, err := rankingqueue.NewService(c.Context, db, e.obs.Logger, e.cfg, e.obs.Metrics, nil)
	if err != nil {
		return err
	}
	defer queue.Close()

	return fn(queue)
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func enqueueCommand() *cli.Command {
	return &cli.Command{
		Name:      "enqueue",
		Usage:     "queue one job for the workers",
		ArgsUsage: "<job>",
		Flags:     []cli.Flag{atFlag},
		Action: func(c *cli.Context) error {
			e, err := load(c)
			if err != nil {
				return err
			}
			defer e.close()
			kind, at, err := jobArgs(c, e.cfg)
			if err != nil {
				return err
			}
			return withQueue(c, e, func(q *rankingqueue.Service) error {
				info, err := q.Enqueue(c.Context, kind, at)
				if err != nil {
					return err
				}
				return printJSON(c, info)
			})
		},
	}
}

func jobsCommand() *cli.Command {
	return &cli.Command{
		Name:  "jobs",
		Usage: "list recent ranking jobs",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 20, Usage: "number of jobs to show"},
		},
		Action: func(c *cli.Context) error {
			e, err := load(c)
			if err != nil {
				return err
			}
			defer e.close()
			return withQueue(c, e, func(q *rankingqueue.Service) error {
				jobs, err := q.ListJobs(c.Context, c.Int("limit"))
				if err != nil {
					return err
				}
				return printJSON(c, jobs)
			})
		},
	}
}

func triggerCommand() *cli.Command {
	return &cli.Command{
		Name:      "trigger",
		Usage:     "publish a job trigger on NATS",
		ArgsUsage: "<job>",
		Flags:     []cli.Flag{atFlag},
		Action: func(c *cli.Context) error {
			e, err := load(c)
			if err != nil {
				return err
			}
			defer e.close()
			kind, at, err := jobArgs(c, e.cfg)
			if err != nil {
				return err
			}

			bus, err := eventbus.NewEventBus(e.cfg.NATS, e.obs.Logger)
			if err != nil {
				return err
			}
			defer bus.Close()

			msg, err := rankinghandlers.NewTriggerMessage(at)
			if err != nil {
				return err
			}
			topic := rankinghandlers.Topic(e.cfg.NATS.TopicPrefix, kind)
			if err := bus.Publisher.Publish(topic, msg); err != nil {
				return fmt.Errorf("publish trigger: %w", err)
			}
			fmt.Fprintf(c.App.Writer, "published %s (message %s)\n", topic, msg.UUID)
			return nil
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply the job queue schema",
		Action: func(c *cli.Context) error {
			e, err := load(c)
			if err != nil {
				return err
			}
			defer e.close()
			if e.cfg.Postgres.DSN == "" {
				return cli.Exit("postgres.dsn is required", 2)
			}
			pool, err := pgxpool.New(c.Context, e.cfg.Postgres.DSN)
			if err != nil {
				return fmt.Errorf("failed to create pgx pool: %w", err)
			}
			defer pool.Close()
			return rankingqueue.Migrate(c.Context, pool, e.obs.Logger)
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "mint a bearer token for the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "subject", Value: "operator", Usage: "token subject"},
			&cli.StringFlag{Name: "role", Value: string(rankingjwt.RoleAdmin), Usage: "admin or viewer"},
			&cli.DurationFlag{Name: "ttl", Usage: "token lifetime (default jwt.default_ttl)"},
		},
		Action: func(c *cli.Context) error {
			e, err := load(c)
			if err != nil {
				return err
			}
			defer e.close()
			ttl := c.Duration("ttl")
			if ttl == 0 {
				ttl = e.cfg.JWT.DefaultTTL
			}
			token, err := rankingjwt.NewProvider(e.cfg.JWT.Secret).GenerateToken(c.String("subject"), rankingjwt.Role(c.String("role")), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, token)
			return nil
		},
	}
}
