package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aivet-io/aivet/internal/audit"
	"github.com/aivet-io/aivet/internal/config"
)

var auditLimit int

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query the run and verdict audit trail",
}

var auditRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent assessment runs",
	RunE:  auditRuns,
}

var auditVerdictsCmd = &cobra.Command{
	Use:   "verdicts <run-id>",
	Short: "List guardrail verdicts recorded for one run",
	Args:  cobra.ExactArgs(1),
	RunE:  auditVerdicts,
}

func init() {
	auditRunsCmd.Flags().IntVar(&auditLimit, "limit", 20, "maximum records to show")

	auditCmd.AddCommand(auditRunsCmd)
	auditCmd.AddCommand(auditVerdictsCmd)
	rootCmd.AddCommand(auditCmd)
}

func openAuditStore() (*audit.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.AuditDisabled {
		return nil, fmt.Errorf("audit trail is disabled (AIVET_AUDIT_DISABLED)")
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return audit.NewStore(cfg.AuditDBPath())
}

func auditRuns(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	store, err := openAuditStore()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(ctx, auditLimit)
	if err != nil {
		return fmt.Errorf("querying runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	for _, r := range runs {
		reason := r.Reason
		if reason == "" {
			reason = "-"
		}
		fmt.Printf("%s  %-9s  searches=%d tokens=%d  %dms  %s  %q\n",
			r.CreatedAt.Format(time.RFC3339), r.State, r.SearchesUsed, r.TokensUsed,
			r.DurationMS, reason, r.AITool)
		fmt.Printf("    id=%s session=%s identity=%s\n", r.ID, r.SessionID, r.Identity)
	}
	return nil
}

func auditVerdicts(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	store, err := openAuditStore()
	if err != nil {
		return err
	}
	defer store.Close()

	verdicts, err := store.ListVerdicts(ctx, args[0])
	if err != nil {
		return fmt.Errorf("querying verdicts: %w", err)
	}
	if len(verdicts) == 0 {
		fmt.Println("No verdicts recorded for that run.")
		return nil
	}

	for _, v := range verdicts {
		reason := v.Reason
		if reason == "" {
			reason = "-"
		}
		fmt.Printf("%s  %-7s %-9s %s\n",
			v.CreatedAt.Format(time.RFC3339), v.Stage, v.Outcome, reason)
	}
	return nil
}
