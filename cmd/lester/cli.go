package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/lesterapp/lester/internal/config"
	"github.com/lesterapp/lester/internal/errors"
	"github.com/lesterapp/lester/internal/mcp"
	"github.com/lesterapp/lester/internal/ops"
	"github.com/lesterapp/lester/internal/web"
	"github.com/lesterapp/lester/internal/worker"
)

// appDeps carries what commands need from process startup.
type appDeps struct {
	db      *sql.DB
	dbPath  string
	baseDir string
	cfg     *config.Config
	log     *slog.Logger
}

// newCLIApp creates the CLI application with all commands.
// deps may be nil when only help or version output is needed.
func newCLIApp(deps *appDeps) *cli.App {
	app := &cli.App{
		Name:    "lester",
		Usage:   "Personal bookmark manager",
		Version: Version,
		Commands: []*cli.Command{
			workspaceCmd(deps),
			bookmarkCmd(deps),
			tagsCmd(deps),
			tagCloudCmd(deps),
			jobsCmd(deps),
			suggestCmd(deps),
			mergeCmd(deps),
			exportOpsCmd(deps),
			workerCmd(deps),
			serveCmd(deps),
			mcpCmd(deps),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// workspaceCmd creates the workspace command group.
func workspaceCmd(d *appDeps) *cli.Command {
	return &cli.Command{
		Name:  "workspace",
		Usage: "Manage workspaces",
		Subcommands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create a workspace",
				ArgsUsage: "<name>",
				Action: func(c *cli.Context) error {
					output, err := ops.CreateWorkspace(c.Context, d.db, ops.CreateWorkspaceInput{Name: c.Args().First()})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, output)
				},
			},
			{
				Name:  "list",
				Usage: "List workspaces",
				Action: func(c *cli.Context) error {
					output, err := ops.ListWorkspaces(c.Context, d.db)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, output)
				},
			},
		},
	}
}

// bookmarkCmd creates the bookmark command group.
func bookmarkCmd(d *appDeps) *cli.Command {
	return &cli.Command{
		Name:  "bookmark",
		Usage: "Save and browse bookmarks",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Save a bookmark and queue it for tagging",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "workspace", Aliases: []string{"w"}, Required: true, Usage: "Workspace ID"},
					&cli.StringFlag{Name: "url", Aliases: []string{"u"}, Usage: "Bookmark URL"},
					&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Bookmark title"},
					&cli.StringFlag{Name: "notes", Aliases: []string{"n"}, Usage: "Markdown notes"},
				},
				Action: func(c *cli.Context) error {
					input := ops.CreateBookmarkInput{
						WorkspaceID: c.String("workspace"),
						URL:         c.String("url"),
						Title:       c.String("title"),
					}
					if c.IsSet("notes") {
						notes := c.String("notes")
						input.Notes = &notes
					}
					output, err := ops.CreateBookmark(c.Context, d.db, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, output)
				},
			},
			{
				Name:  "list",
				Usage: "List bookmarks, most recently updated first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "workspace", Aliases: []string{"w"}, Usage: "Filter by workspace ID"},
					&cli.StringFlag{Name: "tag", Usage: "Filter by tag"},
					&cli.StringFlag{Name: "q", Usage: "Substring match on url or title"},
					&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum results"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.ListBookmarks(c.Context, d.db, ops.ListBookmarksInput{
						WorkspaceID: c.String("workspace"),
						Tag:         c.String("tag"),
						Query:       c.String("q"),
						Limit:       c.Int("limit"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, output)
				},
			},
			{
				Name:      "get",
				Usage:     "Show a bookmark with its tags",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					output, err := ops.GetBookmark(c.Context, d.db, ops.GetBookmarkInput{ID: c.Args().First()})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, output)
				},
			},
		},
	}
}

// tagsCmd creates the tags command.
func tagsCmd(d *appDeps) *cli.Command {
	return &cli.Command{
		Name:  "tags",
		Usage: "List all tags",
		Action: func(c *cli.Context) error {
			output, err := ops.ListTags(c.Context, d.db)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// tagCloudCmd creates the tag-cloud command.
func tagCloudCmd(d *appDeps) *cli.Command {
	return &cli.Command{
		Name:  "tag-cloud",
		Usage: "Show the most used tags with weights",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Maximum entries (default 40)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.TagCloud(c.Context, d.db, ops.TagCloudInput{Limit: c.Int("limit")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// jobsCmd creates the jobs command. With an ID argument it shows one job.
func jobsCmd(d *appDeps) *cli.Command {
	return &cli.Command{
		Name:      "jobs",
		Usage:     "List tag jobs, or show one by ID",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "Filter: pending|running|done|failed"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultJobLimit, Usage: "Maximum results"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() > 0 {
				output, err := ops.GetJob(c.Context, d.db, ops.GetJobInput{ID: c.Args().First()})
				if err != nil {
					return outputError(err)
				}
				return outputJSON(c, output)
			}
			output, err := ops.ListJobs(c.Context, d.db, ops.ListJobsInput{
				Status: c.String("status"),
				Limit:  c.Int("limit"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// suggestCmd creates the suggest command.
func suggestCmd(d *appDeps) *cli.Command {
	return &cli.Command{
		Name:  "suggest",
		Usage: "Preview tag suggestions for a url and title",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Aliases: []string{"u"}, Usage: "URL"},
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Title"},
			&cli.BoolFlag{Name: "rescale", Usage: "Apply the worker's llm rescale"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Suggest(d.cfg.TaggingPolicy(), ops.SuggestInput{
				URL:     c.String("url"),
				Title:   c.String("title"),
				Rescale: c.Bool("rescale"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// mergeCmd creates the merge command.
func mergeCmd(d *appDeps) *cli.Command {
	return &cli.Command{
		Name:  "merge",
		Usage: "Merge two op log files; --apply writes the winning edits",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "left", Required: true, Usage: "First op log (.jsonl)"},
			&cli.StringFlag{Name: "right", Required: true, Usage: "Second op log (.jsonl)"},
			&cli.BoolFlag{Name: "apply", Usage: "Write merged bookmark edits to the local store"},
		},
		Action: func(c *cli.Context) error {
			left, err := ops.ReadOpLog(c.String("left"), d.cfg)
			if err != nil {
				return outputError(err)
			}
			right, err := ops.ReadOpLog(c.String("right"), d.cfg)
			if err != nil {
				return outputError(err)
			}
			input := ops.SyncMergeInput{Left: left.Ops, Right: right.Ops}

			if !c.Bool("apply") {
				return outputJSON(c, ops.SyncMerge(input))
			}
			output, err := ops.SyncApply(c.Context, d.db, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// exportOpsCmd creates the export-ops command.
func exportOpsCmd(d *appDeps) *cli.Command {
	return &cli.Command{
		Name:  "export-ops",
		Usage: "Export bookmarks as an op log for another device",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Output path (default: <base>/sync/<device>-<time>.jsonl)"},
			&cli.StringFlag{Name: "workspace", Aliases: []string{"w"}, Usage: "Only bookmarks in this workspace"},
		},
		Action: func(c *cli.Context) error {
			deviceID, err := config.DeviceID(d.baseDir)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			output, err := ops.ExportOps(c.Context, d.db, d.cfg, ops.ExportOpsInput{
				Path:        c.String("path"),
				DeviceID:    deviceID,
				WorkspaceID: c.String("workspace"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// workerFlags are shared by worker and serve --with-worker.
func workerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{Name: "poll-interval", Usage: "Idle wait between empty polls (default from config)"},
		&cli.IntFlag{Name: "batch-size", Usage: "Jobs fetched per batch (default from config)"},
	}
}

// newWorker builds a worker from config, with flags taking precedence.
func newWorker(c *cli.Context, d *appDeps, once bool) (*worker.Worker, error) {
	opts := worker.Options{
		PollInterval: d.cfg.Worker.PollInterval(),
		BatchSize:    d.cfg.Worker.BatchSize,
		Once:         once,
	}
	if c.IsSet("poll-interval") {
		opts.PollInterval = c.Duration("poll-interval")
	}
	if c.IsSet("batch-size") {
		opts.BatchSize = c.Int("batch-size")
	}
	store := worker.NewSQLStore(d.db, d.dbPath)
	return worker.New(store, d.cfg.TaggingPolicy(), opts, d.log)
}

// workerCmd creates the worker command.
func workerCmd(d *appDeps) *cli.Command {
	return &cli.Command{
		Name:  "worker",
		Usage: "Run the tag enrichment worker",
		Flags: append(workerFlags(),
			&cli.BoolFlag{Name: "once", Usage: "Drain pending jobs and exit"},
		),
		Action: func(c *cli.Context) error {
			w, err := newWorker(c, d, d.cfg.Worker.Once || c.Bool("once"))
			if err != nil {
				return outputError(err)
			}
			if err := w.Run(c.Context); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(d *appDeps) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the JSON HTTP API",
		Flags: append(workerFlags(),
			&cli.StringFlag{Name: "bind", Aliases: []string{"b"}, Usage: "Bind address (default from config)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Port (default from config)"},
			&cli.BoolFlag{Name: "with-worker", Usage: "Also run the tag worker in this process"},
		),
		Action: func(c *cli.Context) error {
			bind, port := d.cfg.HTTP.Bind, d.cfg.HTTP.Port
			if c.IsSet("bind") {
				bind = c.String("bind")
			}
			if c.IsSet("port") {
				port = c.Int("port")
			}

			var w *worker.Worker
			if c.Bool("with-worker") {
				var err error
				if w, err = newWorker(c, d, false); err != nil {
					return outputError(err)
				}
			}

			srv := web.NewServer(d.db, d.cfg, d.log, bind, port)
			g, ctx := errgroup.WithContext(c.Context)
			g.Go(func() error { return web.Run(ctx, srv, d.log) })
			if w != nil {
				g.Go(func() error { return w.Run(ctx) })
			}
			if err := g.Wait(); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(d *appDeps) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Run the MCP server on stdio",
		Action: func(c *cli.Context) error {
			if unknown := mcp.ValidateDisabledTools(d.cfg.DisabledTools); len(unknown) > 0 {
				d.log.Warn("unknown tools in disabled_tools", "tools", strings.Join(unknown, ","))
			}
			if unknown := mcp.ValidateDisabledTypes(d.cfg.DisabledTypes); len(unknown) > 0 {
				d.log.Warn("unknown types in disabled_types", "types", strings.Join(unknown, ","))
			}
			return mcp.Run(d.db, d.cfg, d.log, Version)
		},
	}
}

// Helper functions

// outputJSON writes v to the app's stdout as indented JSON.
func outputJSON(c *cli.Context, v any) error {
	return writeJSON(c.App.Writer, v)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if lErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", lErr.Code, lErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
