package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/nxcoord/internal/claim"
)

// AttemptsOptions holds flags for the attempts command.
type AttemptsOptions struct {
	*RootOptions
	GitSha string
}

// NewAttemptsCommand creates the attempts command.
func NewAttemptsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AttemptsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "attempts",
		Short: "List claim attempts for a commit",
		Long: `List every claim attempt recorded for a commit, newest first.

Examples:
  nxcoord attempts --db ./nxcoord.db --sha abc123
  nxcoord attempts --sha abc123 --format yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAttempts(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.GitSha, "sha", "", "git commit SHA (required)")
	_ = cmd.MarkFlagRequired("sha")

	return cmd
}

func runAttempts(opts *AttemptsOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)

	e, err := opts.setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.close()

	recs, err := claim.NewQueries(e.store, nil).AttemptsForCommit(ctx, opts.GitSha)
	if err != nil {
		return outputError(e.formatter, err)
	}
	return writeSuccess(e.formatter, AttemptList{GitSha: opts.GitSha, Attempts: recs})
}

// RecentOptions holds flags for the recent command.
type RecentOptions struct {
	*RootOptions
	Project      string
	Task         string
	Granted      string // "", "true" or "false"
	GitShaPrefix string
	Cursor       string
	Limit        int
}

// NewRecentCommand creates the recent command.
func NewRecentCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecentOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Page through recent claim attempts",
		Long: `Page through the attempt log, newest first.

Filters apply after a page is read, so a page may show fewer rows than
--limit. Keep following the printed cursor until none is shown.

Examples:
  nxcoord recent --db ./nxcoord.db --limit 20
  nxcoord recent --project web --granted false
  nxcoord recent --sha-prefix abc --cursor <token>`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecent(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Project, "project", "", "only attempts for this project")
	cmd.Flags().StringVar(&opts.Task, "task", "", "only attempts for this task")
	cmd.Flags().StringVar(&opts.Granted, "granted", "", "only granted (true) or denied (false) attempts")
	cmd.Flags().StringVar(&opts.GitShaPrefix, "sha-prefix", "", "only commits starting with this prefix")
	cmd.Flags().StringVar(&opts.Cursor, "cursor", "", "continue from a previous page")
	cmd.Flags().IntVar(&opts.Limit, "limit", claim.DefaultPageLimit, fmt.Sprintf("page size (max %d)", claim.MaxPageLimit))

	return cmd
}

func runRecent(opts *RecentOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)

	rq := claim.RecentQuery{
		Filter: claim.RecentFilter{
			Project:      opts.Project,
			Task:         opts.Task,
			GitShaPrefix: opts.GitShaPrefix,
		},
		Cursor: opts.Cursor,
		Limit:  opts.Limit,
	}
	if opts.Granted != "" {
		granted, err := strconv.ParseBool(opts.Granted)
		if err != nil {
			return NewExitError(ExitCommandError, fmt.Sprintf("invalid --granted %q: must be true or false", opts.Granted))
		}
		rq.Filter.WasGranted = &granted
	}

	e, err := opts.setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.close()

	page, err := claim.NewQueries(e.store, nil).Recent(ctx, rq)
	if err != nil {
		return outputError(e.formatter, err)
	}
	return writeSuccess(e.formatter, RecentResult{Page: page})
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate claim statistics",
		Long: `Show totals, duplicates blocked, and per-project and per-task counts.

Examples:
  nxcoord stats --db ./nxcoord.db
  nxcoord stats --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(rootOpts, cmd)
		},
	}
}

func runStats(opts *RootOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)

	e, err := opts.setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.close()

	stats, err := claim.NewQueries(e.store, nil).Stats(ctx)
	if err != nil {
		return outputError(e.formatter, err)
	}
	return writeSuccess(e.formatter, StatsView{Stats: stats})
}

// NewHealthCommand creates the health command.
func NewHealthCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check store connectivity",
		Long: `Ping the configured store. Exits 1 when the store is unhealthy.

Examples:
  nxcoord health --db ./nxcoord.db
  nxcoord health --store postgres --store-url postgres://localhost/nxcoord`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(rootOpts, cmd)
		},
	}
}

func runHealth(opts *RootOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)

	e, err := opts.setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.close()

	h := claim.NewQueries(e.store, nil).Health(ctx)
	if err := writeSuccess(e.formatter, HealthResult{Health: h}); err != nil {
		return err
	}
	if h.Status != claim.StatusHealthy {
		return NewExitError(ExitFailure, "store unhealthy: "+h.Error).reported()
	}
	return nil
}

func writeSuccess(f *OutputFormatter, data any) error {
	if err := f.Success(data); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}
	return nil
}
