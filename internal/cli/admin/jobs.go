package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/lessonlens/internal/config"
	"github.com/cloo-solutions/lessonlens/internal/domain"
	"github.com/cloo-solutions/lessonlens/internal/logger"
	"github.com/cloo-solutions/lessonlens/internal/metrics"
	"github.com/cloo-solutions/lessonlens/internal/repository"
	"github.com/cloo-solutions/lessonlens/internal/service"
)

// JobsCmd returns the queue administration command
func JobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and enqueue pipeline jobs",
		Long:  "Enqueue embedding and concept jobs for a page or show a queued job's status",
	}

	cmd.AddCommand(JobsEnqueueCmd())
	cmd.AddCommand(JobsStatusCmd())

	return cmd
}

func JobsEnqueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Enqueue pipeline jobs for a page",
		Long:  "Enqueue ProcessEmbedding, ProcessConcepts or both for an existing page",
		Args:  cobra.NoArgs,
		RunE:  runJobsEnqueue,
	}

	cmd.Flags().Int64("page", 0, "Page ID (required)")
	cmd.Flags().String("kind", "all", "Job kind: embedding, concepts or all")
	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	_ = cmd.MarkFlagRequired("page")

	return cmd
}

func JobsStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show a queued job",
		Args:  cobra.ExactArgs(1),
		RunE:  runJobsStatus,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

// jobsForKind maps the CLI kind name to the jobs it enqueues
func jobsForKind(kind string, pageID int64) ([]domain.Job, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "embedding":
		return []domain.Job{domain.ProcessEmbedding{PageID: pageID}}, nil
	case "concepts":
		return []domain.Job{domain.ProcessConcepts{PageID: pageID}}, nil
	case "all", "":
		return domain.PageJobs(pageID), nil
	}
	return nil, fmt.Errorf("unknown job kind %q (expected embedding, concepts or all)", kind)
}

func runJobsEnqueue(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	pageID, _ := cmd.Flags().GetInt64("page")
	kind, _ := cmd.Flags().GetString("kind")
	outputFormat, _ := cmd.Flags().GetString("output")

	if pageID <= 0 {
		return fmt.Errorf("--page must be a positive page id")
	}
	list, err := jobsForKind(kind, pageID)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	pool, err := openPool(ctx, cfg, 0)
	if err != nil {
		return err
	}
	defer pool.Close()

	editing := service.NewEditingService(repository.NewTxRunner(pool), metrics.New(), logger.Nop())
	queued, err := editing.RequestJobs(ctx, pageID, list)
	if err != nil {
		return fmt.Errorf("failed to enqueue jobs: %w", err)
	}

	return printJobs(cmd.OutOrStdout(), outputFormat, queued)
}

func runJobsStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	outputFormat, _ := cmd.Flags().GetString("output")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	pool, err := openPool(ctx, cfg, 0)
	if err != nil {
		return err
	}
	defer pool.Close()

	job, err := repository.NewPipelineJobRepository(pool).GetByID(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	return printJobs(cmd.OutOrStdout(), outputFormat, []*domain.QueuedJob{job})
}

type jobOutput struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	PageID      int64  `json:"page_id"`
	Status      string `json:"status"`
	Attempts    int32  `json:"attempts"`
	Error       string `json:"error,omitempty"`
	AvailableAt string `json:"available_at"`
	ProcessedAt string `json:"processed_at,omitempty"`
}

func toJobOutput(j *domain.QueuedJob) jobOutput {
	out := jobOutput{
		ID:          j.ID,
		Status:      string(j.Status),
		Attempts:    j.Attempts,
		Error:       j.Error,
		AvailableAt: j.AvailableAt.UTC().Format("2006-01-02 15:04:05"),
	}
	if j.Job != nil {
		out.Kind = string(j.Job.Kind())
		out.PageID = j.Job.TargetPageID()
	}
	if j.ProcessedAt != nil {
		out.ProcessedAt = j.ProcessedAt.UTC().Format("2006-01-02 15:04:05")
	}
	return out
}

func printJobs(w io.Writer, format string, queued []*domain.QueuedJob) error {
	outputs := make([]jobOutput, 0, len(queued))
	for _, j := range queued {
		outputs = append(outputs, toJobOutput(j))
	}

	if format == "json" {
		jsonBytes, err := json.MarshalIndent(outputs, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(jsonBytes))
		return nil
	}

	fmt.Fprintf(w, "%-36s  %-16s  %-8s  %-10s  %-8s  %s\n", "ID", "KIND", "PAGE", "STATUS", "ATTEMPTS", "ERROR")
	for _, o := range outputs {
		fmt.Fprintf(w, "%-36s  %-16s  %-8d  %-10s  %-8d  %s\n", o.ID, o.Kind, o.PageID, o.Status, o.Attempts, o.Error)
	}
	return nil
}
