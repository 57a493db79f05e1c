package briefing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greywatch/sentinel/internal/models"
	"github.com/greywatch/sentinel/internal/store/memory"
)

type fakeProvider struct {
	response string
	err      error
}

func (f *fakeProvider) Complete(ctx context.Context, systemPrompt, userPrompt string, jsonMode bool, maxTokens int, temperature float64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestGenerate_SuccessOverwritesNarrativeFields(t *testing.T) {
	fp := &fakeProvider{response: `{"title":"Fortinet Campaign","synopsis":"Actors exploit Fortinet devices.","executiveSummary":"...","impactAnalysis":"...","actionability":"Patch now.","caseType":1}`}
	g := New(fp)

	group := models.NewsGroup{ID: "g1", Title: "seed"}
	out, ok := g.Generate(context.Background(), group, []models.Article{{Content: "exploit details"}})

	require.True(t, ok)
	assert.Equal(t, "Fortinet Campaign", out.Title)
	require.NotNil(t, out.CaseType)
	assert.Equal(t, models.CaseActivelyExploited, *out.CaseType)
}

func TestGenerate_InvalidCaseTypeDefaultsToInfo(t *testing.T) {
	fp := &fakeProvider{response: `{"title":"t","synopsis":"s","caseType":99}`}
	g := New(fp)

	out, ok := g.Generate(context.Background(), models.NewsGroup{Title: "seed"}, nil)
	require.True(t, ok)
	require.NotNil(t, out.CaseType)
	assert.Equal(t, models.CaseInfo, *out.CaseType)
}

func TestGenerate_EmptyTitleLeavesGroupUnchanged(t *testing.T) {
	fp := &fakeProvider{response: `{"title":"","synopsis":"s","caseType":1}`}
	g := New(fp)

	original := models.NewsGroup{Title: "seed"}
	out, ok := g.Generate(context.Background(), original, nil)
	assert.False(t, ok)
	assert.Equal(t, original, out)
}

func TestGenerate_LLMErrorLeavesGroupUnchanged(t *testing.T) {
	fp := &fakeProvider{err: assert.AnError}
	g := New(fp)

	original := models.NewsGroup{Title: "seed"}
	out, ok := g.Generate(context.Background(), original, nil)
	assert.False(t, ok)
	assert.Equal(t, original, out)
}

func TestJoinArticleText_TruncatesEquallyWhenOverCap(t *testing.T) {
	big := make([]byte, maxJoinedChars)
	for i := range big {
		big[i] = 'x'
	}
	articles := []models.Article{{Content: string(big)}, {Content: string(big)}}
	joined := joinArticleText(articles)
	assert.LessOrEqual(t, len(joined), maxJoinedChars+10)
}

func TestRun_PersistsNarratedGroups(t *testing.T) {
	stores, _ := memory.New()
	a, err := stores.Articles.FindOrCreate(context.Background(), models.Article{URL: "https://news.example/x", Content: "text"})
	require.NoError(t, err)

	group, err := stores.NewsGroups.Create(context.Background(), models.NewsGroup{UserID: "u1", Title: "seed", ArticleIDs: []string{a.ID}})
	require.NoError(t, err)

	fp := &fakeProvider{response: `{"title":"Real Title","synopsis":"syn","caseType":2}`}
	g := New(fp)

	summarized, err := g.Run(context.Background(), stores, []models.NewsGroup{group})
	require.NoError(t, err)
	assert.Equal(t, 1, summarized)

	persisted, err := stores.NewsGroups.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, "Real Title", persisted[0].Title)
}
