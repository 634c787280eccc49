package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var submitCmd = &cobra.Command{
	Use:   "submit <query>",
	Short: "Start a research run",
	Long: `Submit starts a new research run for the given query. The orchestrator
may come back with clarification questions; poll them with questions and
respond with answer. Use --context to pre-seed question/answer pairs so a
well-specified query can skip the clarification pause.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pairs, _ := cmd.Flags().GetStringArray("context")
		prior, err := parseQAPairs(pairs)
		if err != nil {
			return err
		}
		var resp struct {
			WorkflowID string `json:"workflow_id"`
			RunID      string `json:"run_id"`
		}
		req := map[string]interface{}{"query": args[0]}
		if len(prior) > 0 {
			req["prior_answers"] = prior
		}
		if err := apiPost("/research", req, &resp); err != nil {
			return err
		}
		fmt.Println(resp.WorkflowID)
		return nil
	},
}

// parseQAPairs turns "question=answer" flags into prior answer objects.
func parseQAPairs(pairs []string) ([]map[string]string, error) {
	out := make([]map[string]string, 0, len(pairs))
	for _, p := range pairs {
		q, a, ok := strings.Cut(p, "=")
		if !ok || q == "" {
			return nil, fmt.Errorf("invalid context pair %q, want question=answer", p)
		}
		out = append(out, map[string]string{"question": q, "answer": a})
	}
	return out, nil
}

var questionsCmd = &cobra.Command{
	Use:   "questions <workflow-id>",
	Short: "Show pending clarification questions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Questions []string `json:"questions"`
			Pending   bool     `json:"pending"`
		}
		if err := apiGet("/research/clarification?workflow_id="+args[0], &resp); err != nil {
			return err
		}
		if !resp.Pending {
			fmt.Fprintln(os.Stderr, "no clarification pending")
			return nil
		}
		for i, q := range resp.Questions {
			fmt.Printf("%d. %s\n", i+1, q)
		}
		return nil
	},
}

var answerCmd = &cobra.Command{
	Use:   "answer <workflow-id> <answer>...",
	Short: "Answer pending clarification questions",
	Long: `Answer submits one answer per pending question, in question order. The
count must match the pending question list exactly; a mismatch is rejected
and the run stays suspended.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		submittedBy, _ := cmd.Flags().GetString("as")
		var resp map[string]interface{}
		err := apiPost("/research/answers", map[string]interface{}{
			"workflow_id":  args[0],
			"answers":      args[1:],
			"submitted_by": submittedBy,
		}, &resp)
		if err != nil {
			return err
		}
		fmt.Println("answers sent")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <workflow-id>",
	Short: "Show the current state of a research run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var status map[string]interface{}
		if err := apiGet("/research/status?workflow_id="+args[0], &status); err != nil {
			return err
		}
		printJSON(status)
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <workflow-id>",
	Short: "Cancel a research run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reason, _ := cmd.Flags().GetString("reason")
		var resp map[string]interface{}
		err := apiPost("/research/cancel", map[string]interface{}{
			"workflow_id": args[0],
			"reason":      reason,
		}, &resp)
		if err != nil {
			return err
		}
		fmt.Println("cancel requested")
		return nil
	},
}

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "List archived research reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		var reports []map[string]interface{}
		if err := apiGet("/research/reports", &reports); err != nil {
			return err
		}
		printJSON(reports)
		return nil
	},
}

func init() {
	submitCmd.Flags().StringArray("context", nil, "prior question=answer pair (repeatable)")
	answerCmd.Flags().String("as", "", "identity recorded with the submission")
	cancelCmd.Flags().String("reason", "", "reason recorded with the cancellation")

	rootCmd.AddCommand(submitCmd, questionsCmd, answerCmd, statusCmd, cancelCmd, reportsCmd)
}
