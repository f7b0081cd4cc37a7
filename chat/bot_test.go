package chat

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrmsu/ojtinsight/insight"
	ojtErrors "github.com/jrmsu/ojtinsight/pkg/errors"
)

type stubPredictor struct {
	got  map[string]any
	pred *insight.Prediction
	err  error
}

func (s *stubPredictor) PredictSnapshot(snapshot map[string]any) (*insight.Prediction, error) {
	s.got = snapshot
	return s.pred, s.err
}

func newBot(t *testing.T, opts ...Option) *Bot {
	t.Helper()
	b, err := New(opts...)
	require.NoError(t, err)
	return b
}

func TestDefaultKnowledge(t *testing.T) {
	k, err := DefaultKnowledge()
	require.NoError(t, err)
	assert.Len(t, k.University, 8)
	assert.Len(t, k.Competencies, 11)
	assert.NotEmpty(t, k.Sections.DTR)
	for _, c := range k.Competencies {
		assert.Len(t, c.patterns, len(c.Keywords), c.Name)
	}
}

func TestParseKnowledgeRejectsBadWeights(t *testing.T) {
	_, err := ParseKnowledge([]byte("competencies:\n  - name: X\n    keywords: {a: 0}\n"))
	assert.Error(t, err)
	_, err = ParseKnowledge([]byte("competencies: ["))
	assert.Error(t, err)
}

func TestRespondTopics(t *testing.T) {
	b := newBot(t)
	k := b.knowledge

	tests := []struct {
		msg  string
		want string
	}{
		{"What is the grading system?", k.Sections.Grading},
		{"list the OJT competencies", k.Sections.Competencies},
		{"what are the steps?", k.Sections.Steps},
		{"OJT requirements", k.Sections.Steps},
		{"How do I write my narrative?", k.Sections.Narrative},
		{"DTR format", k.Sections.DTR},
		{"hello there", k.Prompts.Default},
		{"   ", k.Prompts.Empty},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, b.Respond(tt.msg))
		})
	}
}

func TestRespondUniversity(t *testing.T) {
	b := newBot(t)

	got := b.Respond("What is the MISSION of JRMSU?")
	assert.True(t, strings.HasPrefix(got, "🏫 JRMSU Mission\n"))
	assert.Contains(t, got, "pledges to deliver")

	// University topics win over sections.
	got = b.Respond("core_values and grading")
	assert.Contains(t, got, "Core Values")
}

func TestPredictCompetency(t *testing.T) {
	b := newBot(t)

	assert.Equal(t,
		"Based on your described activity, your learning competency is **Software Development**.",
		b.PredictCompetency("I developed a web application and wrote code"))

	got := b.PredictCompetency("I configured the router and fixed the computer")
	assert.Contains(t, got, "competencies are")
	assert.Contains(t, got, "Networking")
	assert.Contains(t, got, "Technical Support")

	assert.Equal(t, b.knowledge.Prompts.Unidentified, b.PredictCompetency("went to lunch"))
	assert.Equal(t, b.knowledge.Prompts.DescribeActivity, b.PredictCompetency(" "))
}

func TestCompetenciesWordBoundary(t *testing.T) {
	b := newBot(t)
	// "ai" must not match inside "maintenance".
	assert.Equal(t, []string{"Technical Support"}, b.Competencies("maintenance of the computer lab"))
	assert.Empty(t, b.Competencies("explained things"))
}

func TestRespondCompetencyTriggers(t *testing.T) {
	b := newBot(t)

	got := b.Respond(`predict my learning competency "I encoded records into the database"`)
	assert.Contains(t, got, "Data Entry and Management")

	got = b.Respond("predict my learning competency: I repaired and reformatted the office computer")
	assert.Contains(t, got, "Technical Support")

	assert.Equal(t, b.knowledge.Prompts.DescribeActivity, b.Respond("predict my learning competency"))
}

func TestRespondPerformance(t *testing.T) {
	t.Run("no predictor", func(t *testing.T) {
		b := newBot(t)
		assert.Equal(t, b.knowledge.Prompts.ModelsNotLoaded, b.Respond("predict my performance 80 81 82 83"))
	})

	t.Run("too few numbers", func(t *testing.T) {
		b := newBot(t, WithPredictor(&stubPredictor{}))
		assert.Equal(t, b.knowledge.Prompts.PerformanceUsage, b.Respond("predict my performance 80 81"))
	})

	t.Run("predicts", func(t *testing.T) {
		stub := &stubPredictor{pred: &insight.Prediction{
			PredictedLabel: "Excellent",
			Probability:    0.875,
			RiskLevel:      insight.RiskLow,
		}}
		b := newBot(t, WithPredictor(stub))

		got := b.Respond("Predict my performance 85 88.5 90 92")
		assert.Contains(t, got, "Category: Excellent")
		assert.Contains(t, got, "Confidence: 87.5%")
		assert.Contains(t, got, "Risk level: LOW")
		assert.Equal(t, map[string]any{
			insight.DailyProgressScore: 85.0,
			insight.NarrativeScore:     88.5,
			insight.CoordEvalScore:     90.0,
			insight.PartnerEvalScore:   92.0,
		}, stub.got)
	})

	t.Run("predictor error", func(t *testing.T) {
		b := newBot(t, WithPredictor(&stubPredictor{err: errors.New("boom")}))
		assert.Equal(t, b.knowledge.Prompts.PredictionFailed, b.Respond("predict my performance 1 2 3 4"))
		assert.NotEqual(t, b.knowledge.Prompts.ModelsNotLoaded, b.knowledge.Prompts.PredictionFailed)
	})

	t.Run("models not loaded", func(t *testing.T) {
		err := ojtErrors.Wrap(ojtErrors.ErrModelsNotLoaded, "load models")
		b := newBot(t, WithPredictor(&stubPredictor{err: err}))
		assert.Equal(t, b.knowledge.Prompts.ModelsNotLoaded, b.Respond("predict my performance 1 2 3 4"))
	})
}

func TestConcurrentRespond(t *testing.T) {
	b := newBot(t)
	done := make(chan string, 8)
	for i := 0; i < 8; i++ {
		go func() { done <- b.Respond("classify my activity \"monitor the firewall\"") }()
	}
	for i := 0; i < 8; i++ {
		assert.Contains(t, <-done, "Information Security Analysis")
	}
}
