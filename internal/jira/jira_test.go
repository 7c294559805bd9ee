package jira

import (
	"testing"

	"github.com/ctreminiom/go-atlassian/v2/pkg/infra/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnazariah/aura-sub015/internal/config"
)

func TestParseIssueKey(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"bare key", "PROJ-123", "PROJ-123", false},
		{"browse URL", "https://acme.atlassian.net/browse/PROJ-123", "PROJ-123", false},
		{"trailing slash", "https://acme.atlassian.net/browse/AB2-7/", "AB2-7", false},
		{"not an issue", "https://acme.atlassian.net/jira/dashboards", "", true},
		{"empty", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ParseIssueKey(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, key)
		})
	}
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(config.JiraConfig{})
	assert.ErrorContains(t, err, "site_url")

	_, err = NewClient(config.JiraConfig{SiteURL: "https://acme.atlassian.net"})
	assert.ErrorContains(t, err, "email and api_token")

	c, err := NewClient(config.JiraConfig{
		SiteURL:  "https://acme.atlassian.net/",
		Email:    "dev@acme.test",
		APIToken: "tok",
	})
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func text(s string, marks ...*models.MarkScheme) *models.CommentNodeScheme {
	return &models.CommentNodeScheme{Type: "text", Text: s, Marks: marks}
}

func node(typ string, attrs map[string]interface{}, content ...*models.CommentNodeScheme) *models.CommentNodeScheme {
	return &models.CommentNodeScheme{Type: typ, Attrs: attrs, Content: content}
}

func TestADFToText(t *testing.T) {
	doc := node("doc", nil,
		node("heading", map[string]interface{}{"level": float64(2)}, text("Context")),
		node("paragraph", nil,
			text("Make the "),
			text("parser", &models.MarkScheme{Type: "code"}),
			text(" faster."),
		),
		node("bulletList", nil,
			node("listItem", nil, node("paragraph", nil, text("profile first"))),
			node("listItem", nil, node("paragraph", nil, text("avoid allocations"))),
		),
		node("codeBlock", map[string]interface{}{"language": "go"},
			text("func Parse() {}"),
		),
	)

	got := adfToText(doc)
	assert.Contains(t, got, "## Context")
	assert.Contains(t, got, "Make the `parser` faster.")
	assert.Contains(t, got, "- profile first\n- avoid allocations")
	assert.Contains(t, got, "```go\nfunc Parse() {}\n```")
}

func TestADFToTextNil(t *testing.T) {
	assert.Equal(t, "", adfToText(nil))
}

func TestADFToTextUnknownNodeKeepsChildren(t *testing.T) {
	doc := node("doc", nil,
		node("panel", nil, node("paragraph", nil, text("important note"))),
	)
	assert.Contains(t, adfToText(doc), "important note")
}
