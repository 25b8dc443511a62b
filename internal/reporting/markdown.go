package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Buyback Execution Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	// Totals
	sb.WriteString("## Totals\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Successful Executions | %d |\n", r.Successes))
	sb.WriteString(fmt.Sprintf("| Failed Attempts | %d |\n", r.Failures))
	sb.WriteString(fmt.Sprintf("| Total Spent (wei) | %s |\n", r.Totals.TotalSpent))
	sb.WriteString(fmt.Sprintf("| Total Acquired (wei) | %s |\n", r.Totals.TotalAcquired))
	sb.WriteString(fmt.Sprintf("| Avg Tokens per Unit Spent | %s |\n", r.Totals.AvgPrice.StringFixed(8)))
	if r.Totals.FirstExecutionAt > 0 {
		sb.WriteString(fmt.Sprintf("| First Execution | %s |\n", time.Unix(r.Totals.FirstExecutionAt, 0).UTC().Format(time.RFC3339)))
		sb.WriteString(fmt.Sprintf("| Last Execution | %s |\n", time.Unix(r.Totals.LastExecutionAt, 0).UTC().Format(time.RFC3339)))
	}
	sb.WriteString("\n")

	// Failure breakdown
	sb.WriteString("## Failure Breakdown\n\n")
	if len(r.FailureBreakdown) > 0 {
		sb.WriteString("| Reason | Count |\n")
		sb.WriteString("|--------|-------|\n")
		for _, row := range r.FailureBreakdown {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", row.Reason, row.Count))
		}
	} else {
		sb.WriteString("No failed attempts recorded.\n")
	}
	sb.WriteString("\n")

	// Recent activity
	sb.WriteString("## Recent Executions\n\n")
	if len(r.Recent) > 0 {
		sb.WriteString("| ID | Executed At | Amount In | Amount Out | Price | Outcome | Reason |\n")
		sb.WriteString("|----|-------------|-----------|------------|-------|---------|--------|\n")
		for _, row := range r.Recent {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s | %s | %s |\n",
				row.ExecutionID,
				time.Unix(row.ExecutedAt, 0).UTC().Format(time.RFC3339),
				row.AmountIn, row.AmountOut, row.PricePerToken,
				row.Outcome, row.Reason))
		}
	} else {
		sb.WriteString("No executions recorded.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
