package jira

import (
	"fmt"
	"strings"

	"github.com/ctreminiom/go-atlassian/v2/pkg/infra/models"
)

// adfToText flattens an Atlassian Document Format tree into markdown-ish
// plain text suitable for a story description. Unknown node types keep
// their children so content is never silently dropped.
func adfToText(node *models.CommentNodeScheme) string {
	if node == nil {
		return ""
	}
	var b strings.Builder
	writeNode(&b, node, false)
	return strings.TrimRight(b.String(), "\n")
}

func writeNode(b *strings.Builder, node *models.CommentNodeScheme, inList bool) {
	if node == nil {
		return
	}

	switch node.Type {
	case "doc":
		writeChildren(b, node, false)

	case "paragraph":
		writeChildren(b, node, inList)
		if inList {
			b.WriteString("\n")
		} else {
			b.WriteString("\n\n")
		}

	case "heading":
		level := attrInt(node.Attrs, "level", 1)
		b.WriteString(strings.Repeat("#", level) + " ")
		writeChildren(b, node, false)
		b.WriteString("\n\n")

	case "text":
		b.WriteString(markText(node.Text, node.Marks))

	case "hardBreak":
		b.WriteString("\n")

	case "bulletList":
		for _, item := range node.Content {
			b.WriteString("- ")
			writeListItem(b, item)
		}
		b.WriteString("\n")

	case "orderedList":
		for i, item := range node.Content {
			fmt.Fprintf(b, "%d. ", i+1)
			writeListItem(b, item)
		}
		b.WriteString("\n")

	case "codeBlock":
		lang := attrString(node.Attrs, "language")
		b.WriteString("```" + lang + "\n")
		writeChildren(b, node, false)
		b.WriteString("\n```\n\n")

	case "blockquote":
		var inner strings.Builder
		writeChildren(&inner, node, false)
		for _, line := range strings.Split(strings.TrimRight(inner.String(), "\n"), "\n") {
			b.WriteString("> " + line + "\n")
		}
		b.WriteString("\n")

	case "rule":
		b.WriteString("---\n\n")

	case "mention":
		b.WriteString(attrString(node.Attrs, "text"))

	case "inlineCard":
		b.WriteString(attrString(node.Attrs, "url"))

	default:
		writeChildren(b, node, inList)
	}
}

func writeChildren(b *strings.Builder, node *models.CommentNodeScheme, inList bool) {
	for _, child := range node.Content {
		writeNode(b, child, inList)
	}
}

func writeListItem(b *strings.Builder, item *models.CommentNodeScheme) {
	if item == nil || len(item.Content) == 0 {
		b.WriteString("\n")
		return
	}
	writeChildren(b, item, true)
}

func markText(text string, marks []*models.MarkScheme) string {
	for _, m := range marks {
		switch m.Type {
		case "strong":
			text = "**" + text + "**"
		case "em":
			text = "*" + text + "*"
		case "code":
			text = "`" + text + "`"
		}
	}
	return text
}

func attrString(attrs map[string]interface{}, key string) string {
	if v, ok := attrs[key].(string); ok {
		return v
	}
	return ""
}

func attrInt(attrs map[string]interface{}, key string, fallback int) int {
	switch v := attrs[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return fallback
	}
}
