package analysis

import (
	"fmt"
	"strings"

	"intelplatform/internal/models"
)

const generalSystemPrompt = "You are a helpful assistant."

var systemPrompts = map[models.Domain]string{
	models.DomainCybersecurity: `You are a cybersecurity expert assistant.

- Analyze incidents and threats
- Provide technical guidance
- Explain attack vectors & mitigations
- Use standard terminology (MITRE, CVE)
- Prioritize actionable recommendations`,

	models.DomainDataScience: `You are a senior data science assistant.

- Clarify objectives, constraints, and data context
- Recommend statistical tests, ML models, and feature engineering steps
- Provide python/pandas/scikit-learn code when helpful
- Justify trade-offs between accuracy, interpretability, and compute cost
- Highlight data quality, bias, and validation considerations`,

	models.DomainITOperations: `You are an IT operations command-center assistant.

- Triage incidents and service tickets quickly
- Recommend troubleshooting steps and escalation paths
- Call out monitoring, automation, and reliability improvements
- Translate impact in terms of SLAs and business services
- Communicate clearly for support engineers and stakeholders`,
}

// SystemPrompt returns the assistant persona for domain, falling back to a
// general assistant.
func SystemPrompt(domain models.Domain) string {
	if p, ok := systemPrompts[domain]; ok {
		return p
	}
	return generalSystemPrompt
}

func IncidentPrompt(in models.Incident) string {
	return fmt.Sprintf(`You are a cybersecurity expert assistant.

Analyse the following incident and explain the following:
-Analysis of the root cause
-Immediate actions
-Provide technical guidance
-Preventive measures
-Risk level with explanation

Incident details:
-Type: %s
-Severity: %s
-Status: %s
-Description: %s`, in.IncidentType, in.Severity, in.Status, in.Description)
}

func DatasetPrompt(ds models.Dataset) string {
	return fmt.Sprintf(`You are a senior data science assistant.

Review the following dataset metadata and provide:
-Primary business problems or analyses this dataset can support
-Recommended data quality checks or integrity issues to watch
-Feature engineering or transformation ideas
-Appropriate modelling or visualisation approaches
-Operational considerations (refresh cadence, owners, monitoring)

Dataset details:
-Name: %s
-Category: %s
-Source: %s
-Last Updated: %s
-Record Count: %d
-Column Count: %d
-File Size (MB): %.2f`, ds.Name, ds.Category, ds.Source, ds.LastUpdated, ds.RecordCount, ds.ColumnCount, ds.FileSizeMB)
}

func TicketPrompt(t models.Ticket) string {
	return fmt.Sprintf(`You are an IT operations command-center assistant.

Review the following ticket and provide:
-Likely root cause or impacted services
-Immediate triage steps and tooling/logs required
-Escalation or collaboration recommendations
-Preventive automation or monitoring improvements
-Risk level / SLA considerations with justification

Ticket details:
-Subject: %s
-Priority: %s
-Status: %s
-Category: %s
-Assigned To: %s
-Created Date: %s
-Resolved Date: %s
-Description: %s`, t.Subject, t.Priority, t.Status, t.Category, t.AssignedTo, t.CreatedDate, t.ResolvedDate, t.Description)
}

// ChartPrompt asks for a summary of one group-by aggregate.
func ChartPrompt(domain models.Domain, title string, counts []models.GroupCount) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Review the following %s dashboard chart data and provide a concise analysis\n", domain.Label())
	b.WriteString("covering notable trends, anomalies, and recommended actions.\n")
	fmt.Fprintf(&b, "Chart: %s\nChart data:\n", title)
	for _, c := range counts {
		key := c.Key
		if key == "" {
			key = "(none)"
		}
		fmt.Fprintf(&b, "- %s: %d\n", key, c.Count)
	}
	return b.String()
}

// Conversation prepends the domain system prompt to a chat history, dropping
// any system messages the caller supplied.
func Conversation(domain models.Domain, history []Message) []Message {
	msgs := make([]Message, 0, len(history)+1)
	msgs = append(msgs, Message{Role: RoleSystem, Content: SystemPrompt(domain)})
	for _, m := range history {
		if m.Role == RoleUser || m.Role == RoleAssistant {
			msgs = append(msgs, m)
		}
	}
	return msgs
}
