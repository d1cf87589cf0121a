package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/nxcoord/internal/claim"
)

// ClaimOptions holds flags for the claim command.
type ClaimOptions struct {
	*RootOptions
	AgentID string
	Project string
	Task    string
	GitSha  string
}

// NewClaimCommand creates the claim command.
func NewClaimCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClaimOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Attempt to claim a task for a commit",
		Long: `Attempt to claim (project, task, commit) for an agent.

The first claim for a task key is granted. Later claims are denied and report
which agent holds the key. Exits 0 when granted and 1 when denied, so scripts
can branch on the result.

Examples:
  nxcoord claim --db ./nxcoord.db --agent runner-1 --project web --task build --sha abc123
  nxcoord claim --agent runner-2 --project web --task build --sha abc123 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClaim(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.AgentID, "agent", "", "claiming agent ID (required)")
	cmd.Flags().StringVar(&opts.Project, "project", "", "project name (required)")
	cmd.Flags().StringVar(&opts.Task, "task", "", "task name (required)")
	cmd.Flags().StringVar(&opts.GitSha, "sha", "", "git commit SHA (required)")
	_ = cmd.MarkFlagRequired("agent")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("task")
	_ = cmd.MarkFlagRequired("sha")

	return cmd
}

func runClaim(opts *ClaimOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)

	e, err := opts.setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.close()

	req := claim.ClaimRequest{
		AgentID: opts.AgentID,
		Project: opts.Project,
		Task:    opts.Task,
		GitSha:  opts.GitSha,
	}
	arbiter := claim.NewArbiter(e.store, claim.WithLogger(e.logger))
	verdict, err := arbiter.AttemptClaim(ctx, req)
	if err != nil {
		return outputError(e.formatter, err)
	}

	if err := writeSuccess(e.formatter, newClaimResult(req.Key(), verdict)); err != nil {
		return err
	}
	if !verdict.Acquired {
		return NewExitError(ExitFailure, verdict.Message()).reported()
	}
	return nil
}
