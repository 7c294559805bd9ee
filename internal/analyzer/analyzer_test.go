package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnazariah/aura-sub015/internal/codeindex"
	"github.com/johnazariah/aura-sub015/internal/errors"
	"github.com/johnazariah/aura-sub015/internal/llm"
	"github.com/johnazariah/aura-sub015/internal/story"
)

// fakeClient returns a canned response or error and records the prompt.
type fakeClient struct {
	text   string
	err    error
	prompt string
}

func (f *fakeClient) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.prompt = req.Prompt
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Text: f.text}, nil
}

// fakeIndex returns canned hits or an error.
type fakeIndex struct {
	hits []codeindex.Hit
	err  error
}

func (f *fakeIndex) Search(context.Context, string, string, int) ([]codeindex.Hit, error) {
	return f.hits, f.err
}

const goodAnalysis = `{
	"summary": "Add OAuth login",
	"coreRequirements": ["login endpoint"],
	"technicalConstraints": ["no new deps"],
	"affectedFiles": ["auth/login.go"],
	"suggestedApproach": "extend the auth package"
}`

func TestAnalyzeParsesResponse(t *testing.T) {
	client := &fakeClient{text: goodAnalysis}
	a := New(client)

	st := story.New("Add OAuth login", "Allow GitHub login", "/repo")
	got, err := a.Analyze(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, "Add OAuth login", got.Summary)
	assert.Equal(t, []string{"auth/login.go"}, got.AffectedFiles)
	assert.Contains(t, client.prompt, "Allow GitHub login")
}

func TestAnalyzeIncludesRetrievedContext(t *testing.T) {
	client := &fakeClient{text: goodAnalysis}
	idx := &fakeIndex{hits: []codeindex.Hit{
		{Path: "auth/session.go", Snippet: "func NewSession", Score: 1},
	}}
	a := New(client, WithIndex(idx))

	st := story.New("Sessions", "", "/repo")
	_, err := a.Analyze(context.Background(), st)
	require.NoError(t, err)
	assert.Contains(t, client.prompt, "auth/session.go")
}

func TestAnalyzeDegradesWhenIndexFails(t *testing.T) {
	client := &fakeClient{text: goodAnalysis}
	idx := &fakeIndex{err: assert.AnError}
	a := New(client, WithIndex(idx))

	st := story.New("Sessions", "", "/repo")
	_, err := a.Analyze(context.Background(), st)
	assert.NoError(t, err)
}

func TestAnalyzePropagatesTransportError(t *testing.T) {
	client := &fakeClient{err: errors.New(errors.KindLLMUnavailable, "down")}
	a := New(client)

	_, err := a.Analyze(context.Background(), story.New("x", "", ""))
	assert.True(t, errors.IsKind(err, errors.KindLLMUnavailable))
}

func TestAnalyzeRejectsUnparseableResponse(t *testing.T) {
	client := &fakeClient{text: "I cannot help with that."}
	a := New(client)

	_, err := a.Analyze(context.Background(), story.New("x", "", ""))
	assert.True(t, errors.IsKind(err, errors.KindLLMParse))
}

func TestAnalyzeRejectsMissingSummary(t *testing.T) {
	client := &fakeClient{text: `{"coreRequirements": []}`}
	a := New(client)

	_, err := a.Analyze(context.Background(), story.New("x", "", ""))
	assert.True(t, errors.IsKind(err, errors.KindLLMParse))
}

func TestMarshalRoundTrip(t *testing.T) {
	c := &Context{Summary: "s", CoreRequirements: []string{"r"}}
	data, err := c.Marshal()
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}
