package progress

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ucsync/ucsync/internal/diff"
)

// RenderPlan renders a plan tree with one styled line per node, creates in
// green, drops in red and replacements highlighted.
func RenderPlan(title string, root *diff.Node) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")

	if root == nil {
		b.WriteString(dimStyle.Render("  in sync, nothing to do"))
		b.WriteString("\n")
		return b.String()
	}

	root.Walk(func(n *diff.Node, depth int) {
		b.WriteString(strings.Repeat("  ", depth+1))
		b.WriteString(opStyle(n.Op).Render(n.Op.Describe()))
		b.WriteString("\n")
	})
	return b.String()
}

func opStyle(op diff.Operation) lipgloss.Style {
	switch o := op.(type) {
	case diff.Group:
		return dimStyle
	case diff.DropCatalog, diff.DropSchema, diff.DropTable:
		return errStyle
	case diff.CloneTable:
		if o.Target != nil {
			return highlightStyle
		}
		return successStyle
	default:
		return successStyle
	}
}
