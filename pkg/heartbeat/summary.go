package heartbeat

import (
	"fmt"
	"strings"
)

// AllClearSummary is rendered when a cycle produced zero findings.
const AllClearSummary = "All clear — nothing needs your attention right now."

// FormatSummary renders the findings from one cycle as a human-readable
// report. Findings that demand action are promoted to a critical section
// regardless of their check's priority.
func FormatSummary(results []Result) string {
	var critical, high, medium, low []Finding
	for _, result := range results {
		for _, f := range result.Findings {
			switch {
			case f.ActionRequired:
				critical = append(critical, f)
			case f.Priority == PriorityHigh:
				high = append(high, f)
			case f.Priority == PriorityMedium:
				medium = append(medium, f)
			default:
				low = append(low, f)
			}
		}
	}

	total := len(critical) + len(high) + len(medium) + len(low)
	if total == 0 {
		return AllClearSummary
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Heartbeat report: %d finding(s) across %d check(s)\n", total, len(results))

	writeSection(&sb, "Needs action", critical, true)
	writeSection(&sb, "High priority", high, false)
	writeSection(&sb, "Medium priority", medium, false)
	writeSection(&sb, "Low priority", low, false)

	return strings.TrimRight(sb.String(), "\n")
}

func writeSection(sb *strings.Builder, title string, findings []Finding, withSuggestions bool) {
	if len(findings) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n%s:\n", title)
	for _, f := range findings {
		fmt.Fprintf(sb, "  - [%s] %s\n", f.Source, f.Summary)
		if withSuggestions && f.SuggestedAction != "" {
			fmt.Fprintf(sb, "    Suggested: %s\n", f.SuggestedAction)
		}
	}
}
