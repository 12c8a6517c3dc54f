package biz

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sensei/internal/model"
	"github.com/kart-io/sensei/pkg/errors"
	"github.com/kart-io/sensei/pkg/llm"
)

type staticClassifier struct {
	cls *model.Classification
	err error
}

func (s staticClassifier) Classify(context.Context, string) (*model.Classification, error) {
	return s.cls, s.err
}

// echoKnowledge answers with the knowledge block it was given.
func echoKnowledge(prompt, _ string) (string, error) {
	if i := strings.Index(prompt, "RELEVANT KNOWLEDGE:\n"); i >= 0 {
		return "From my notes: " + prompt[i:], nil
	}
	return "I don't know.", nil
}

func TestPipeline_RetrievalRoundTrip(t *testing.T) {
	ctx := context.Background()
	ix := NewIndex(newDocumentStore(t), DefaultIndexOptions())
	_, err := ix.Ingest(ctx, "secret", secretDoc)
	require.NoError(t, err)

	classifierLLM := replyWith(`{"category":"Casual","enhanced_query":"What is the secret project codename?"}`)
	router := newTestRouter(newMemRepo(), classifierLLM)
	answerLLM := &fakeProvider{reply: echoKnowledge}
	p := NewPipeline(router, ix, NewPersonaSet(""), answerLLM, DefaultPipelineOptions())

	ans, err := p.Ask(ctx, "What is the secret project codename?")
	require.NoError(t, err)
	assert.Contains(t, ans.Content, "BLUEBERRY_PIE")
	assert.Equal(t, model.Casual, ans.Category)
	require.Len(t, ans.Sources, 1)

	require.Equal(t, 1, answerLLM.count())
	c := answerLLM.last()
	assert.Equal(t, "SYSTEM: You are Sensei.", c.system)
	assert.Equal(t, llm.SafetyStandard, c.opts.SafetyMode)
	assert.Equal(t,
		"RELEVANT KNOWLEDGE:\n"+secretDoc+"\n\nUSER QUERY:\nWhat is the secret project codename?",
		c.prompt)
}

func TestPipeline_PolicySelectsPersonaAndSafety(t *testing.T) {
	for _, cat := range model.AllCategories() {
		t.Run(cat.String(), func(t *testing.T) {
			answer := replyWith("ok")
			p := NewPipeline(
				staticClassifier{cls: &model.Classification{Category: cat, EnhancedQuery: "q"}},
				nil, NewPersonaSet(""), answer, DefaultPipelineOptions())

			_, err := p.Ask(context.Background(), "q")
			require.NoError(t, err)

			policy := cat.Policy()
			c := answer.last()
			assert.Equal(t, policy.SafetyMode, c.opts.SafetyMode)
			assert.Equal(t, defaultPersona(policy.Persona), c.system)
			assert.Equal(t, "q", c.prompt)
		})
	}
}

func TestPipeline_EmptyIndexAnswersWithoutContext(t *testing.T) {
	answer := replyWith("hello!")
	p := NewPipeline(
		staticClassifier{cls: &model.Classification{Category: model.Casual, EnhancedQuery: "hi"}},
		NewIndex(nil, DefaultIndexOptions()), nil, answer, DefaultPipelineOptions())

	ans, err := p.Ask(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello!", ans.Content)
	assert.Empty(t, ans.Sources)
	assert.Equal(t, "hi", answer.last().prompt)
}

func TestPipeline_ClassificationErrorSkipsGeneration(t *testing.T) {
	answer := replyWith("never")
	p := NewPipeline(staticClassifier{err: errors.ErrClassification}, nil, nil, answer, DefaultPipelineOptions())

	_, err := p.Ask(context.Background(), "q")
	assert.True(t, errors.IsCode(err, errors.ErrClassification.Code))
	assert.Zero(t, answer.count())
}

func TestPipeline_GenerationError(t *testing.T) {
	answer := &fakeProvider{reply: func(string, string) (string, error) { return "", stderrors.New("upstream 500") }}
	p := NewPipeline(staticClassifier{cls: &model.Classification{Category: model.Red, EnhancedQuery: "q"}},
		nil, nil, answer, DefaultPipelineOptions())

	_, err := p.Ask(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrGeneration.Code))
	assert.Equal(t, 1, answer.count(), "the pipeline must not retry")
}

func TestPipeline_EmptyAnswerIsGenerationError(t *testing.T) {
	p := NewPipeline(staticClassifier{cls: &model.Classification{Category: model.Red, EnhancedQuery: "q"}},
		nil, nil, replyWith("  "), DefaultPipelineOptions())

	_, err := p.Ask(context.Background(), "q")
	assert.True(t, errors.IsCode(err, errors.ErrGeneration.Code))
}

func TestPipeline_GenerationTimeout(t *testing.T) {
	answer := replyWith("late")
	answer.delay = time.Second
	p := NewPipeline(staticClassifier{cls: &model.Classification{Category: model.Red, EnhancedQuery: "q"}},
		nil, nil, answer, PipelineOptions{GenerationTimeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := p.Ask(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrGenerationTimeout.Code))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestBuildUserPrompt(t *testing.T) {
	assert.Equal(t, "q", BuildUserPrompt("q", nil))

	hits := []model.ScoredChunk{
		{Chunk: model.Chunk{Content: "one"}},
		{Chunk: model.Chunk{Content: "two"}},
	}
	assert.Equal(t, "RELEVANT KNOWLEDGE:\none\n---\ntwo\n\nUSER QUERY:\nq", BuildUserPrompt("q", hits))
}
