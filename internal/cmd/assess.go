package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aivet-io/aivet/internal/run"
)

var (
	assessSessionID string
	assessJSON      bool
)

var assessCmd = &cobra.Command{
	Use:   "assess <ai-tool>",
	Short: "Run one compliance assessment from the command line",
	Long: `Runs a guarded assessment of the named AI tool and prints the report.

Pass --session to reuse an existing session's budgets for a follow-up
assessment; omit it for a fresh session.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAssess,
}

func init() {
	assessCmd.Flags().StringVar(&assessSessionID, "session", "", "session ID to reuse (shares budgets with prior runs)")
	assessCmd.Flags().BoolVar(&assessJSON, "json", false, "print the full outcome as JSON")
	rootCmd.AddCommand(assessCmd)
}

func runAssess(cmd *cobra.Command, args []string) error {
	ctx, span := tracer.Start(cmd.Context(), "assess")
	defer span.End()

	p, err := buildPipeline()
	if err != nil {
		return err
	}
	defer p.close()

	out, err := p.coordinator.Assess(ctx, run.Request{
		AITool:    strings.Join(args, " "),
		Identity:  localIdentity(),
		SessionID: assessSessionID,
	})
	if err != nil {
		return err
	}

	if assessJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	switch out.State {
	case run.StateCompleted:
		fmt.Println(out.Result.Report)
		fmt.Printf("\nsession: %s (reuse with --session for follow-ups)\n", out.SessionID)
	case run.StateRejected:
		fmt.Printf("rejected (%s stage): %s\n", out.Rejection.Stage, out.Rejection.Message)
	case run.StateFailed:
		fmt.Printf("failed: %s\n", out.Failure.Reason)
		printCitations(out.Failure.Citations)
	}
	return nil
}

func printCitations(c run.Citations) {
	if len(c.Primary)+len(c.Secondary) == 0 {
		return
	}
	fmt.Println("evidence gathered before the run ended:")
	for _, r := range c.Primary {
		fmt.Printf("  [primary] %s <%s>\n", r.Title, r.URL)
	}
	for _, r := range c.Secondary {
		fmt.Printf("  [secondary] %s <%s>\n", r.Title, r.URL)
	}
}

func localIdentity() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "local"
}
