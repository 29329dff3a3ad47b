package tui

import (
	"fmt"
	"strings"

	"github.com/derivekit/derivekit/pkg/domain"
)

// SessionMarkdown renders a session as a markdown report for the CLI.
func SessionMarkdown(sess *domain.Session) string {
	var b strings.Builder

	title := sess.Name
	if title == "" {
		title = sess.ID
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "- **ID**: `%s`\n", sess.ID)
	fmt.Fprintf(&b, "- **Status**: %s\n", sess.Status)
	if sess.Description != "" {
		fmt.Fprintf(&b, "- **Description**: %s\n", sess.Description)
	}
	fmt.Fprintf(&b, "- **Updated**: %s\n", sess.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
	if sess.Current != "" {
		fmt.Fprintf(&b, "\n**Current expression**\n\n```\n%s\n```\n", sess.Current)
	}

	if len(sess.Formulas) > 0 {
		b.WriteString("\n## Formulas\n\n")
		for _, f := range sess.Formulas {
			name := f.Name
			if name == "" {
				name = f.ID
			}
			fmt.Fprintf(&b, "- **%s**: `%s`\n", name, f.Expression)
		}
	}

	if len(sess.Steps) > 0 {
		b.WriteString("\n## Steps\n\n")
		for _, step := range sess.Steps {
			fmt.Fprintf(&b, "%d. **%s** — %s\n", step.Number, step.Operation, step.Description)
			if step.Output != "" {
				fmt.Fprintf(&b, "   - `%s`\n", step.Output)
			}
			if step.Notes != "" {
				fmt.Fprintf(&b, "   - _%s_\n", step.Notes)
			}
			if step.ExternalTool != "" {
				fmt.Fprintf(&b, "   - via %s\n", step.ExternalTool)
			}
		}
	}

	return b.String()
}

// ResultMarkdown renders an archived result as a markdown report.
func ResultMarkdown(r *domain.Result) string {
	var b strings.Builder

	title := r.Name
	if title == "" {
		title = r.ID
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "```\n%s\n```\n\n", r.Expression)
	if r.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", r.Description)
	}
	if r.Category != "" {
		fmt.Fprintf(&b, "- **Category**: %s\n", r.Category)
	}
	if len(r.Tags) > 0 {
		fmt.Fprintf(&b, "- **Tags**: %s\n", strings.Join(r.Tags, ", "))
	}
	if r.Verified {
		method := r.VerificationMethod
		if method == "" {
			method = "unspecified"
		}
		fmt.Fprintf(&b, "- **Verified**: yes (%s)\n", method)
	}
	if len(r.Assumptions) > 0 {
		b.WriteString("\n## Assumptions\n\n")
		for _, a := range r.Assumptions {
			fmt.Fprintf(&b, "- %s\n", a)
		}
	}
	if len(r.Limitations) > 0 {
		b.WriteString("\n## Limitations\n\n")
		for _, l := range r.Limitations {
			fmt.Fprintf(&b, "- %s\n", l)
		}
	}
	fmt.Fprintf(&b, "\n_%d steps, completed %s_\n", len(r.Steps), r.CompletedAt.Format("2006-01-02"))
	return b.String()
}
