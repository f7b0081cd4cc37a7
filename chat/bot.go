// Package chat implements the OJT assistant: a keyword bot answering
// questions about the university and the OJT program, predicting learning
// competencies from activity descriptions and, when a model is wired,
// performance from evaluation scores.
package chat

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jrmsu/ojtinsight/insight"
	ojtErrors "github.com/jrmsu/ojtinsight/pkg/errors"
	"github.com/jrmsu/ojtinsight/pkg/log"
)

// header separates a reply title from its body.
const header = "------------------------------------------------------------"

// performanceTrigger asks the bot for a performance prediction.
const performanceTrigger = "predict my performance"

// competencyThreshold is the share of the best score another competency
// needs to be reported alongside it.
const competencyThreshold = 0.6

var (
	quotedActivity = regexp.MustCompile(`["“](.*?)["”]`)
	activitySplit  = regexp.MustCompile(`predict|based on|activity|competency|learning`)
	numberPattern  = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
)

// performanceKeys is the order in which the four scores of a performance
// request are read.
var performanceKeys = []string{
	insight.DailyProgressScore,
	insight.NarrativeScore,
	insight.CoordEvalScore,
	insight.PartnerEvalScore,
}

// Predictor predicts performance from a runtime snapshot.
// *insight.TrainedEnsemble implements it.
type Predictor interface {
	PredictSnapshot(snapshot map[string]any) (*insight.Prediction, error)
}

// Bot answers chat messages. It is safe for concurrent use.
type Bot struct {
	knowledge *Knowledge
	predictor Predictor
	logger    log.Logger
}

// Option configures a Bot.
type Option func(*Bot)

// WithPredictor wires a performance predictor.
func WithPredictor(p Predictor) Option {
	return func(b *Bot) {
		b.predictor = p
	}
}

// WithKnowledge replaces the embedded knowledge base.
func WithKnowledge(k *Knowledge) Option {
	return func(b *Bot) {
		b.knowledge = k
	}
}

// New returns a Bot backed by the embedded knowledge base.
func New(opts ...Option) (*Bot, error) {
	b := &Bot{logger: log.GetLoggerWithName("chat")}
	for _, opt := range opts {
		opt(b)
	}
	if b.knowledge == nil {
		k, err := DefaultKnowledge()
		if err != nil {
			return nil, err
		}
		b.knowledge = k
	}
	return b, nil
}

// Respond returns the reply to message.
func (b *Bot) Respond(message string) string {
	text := strings.ToLower(strings.TrimSpace(message))
	if text == "" {
		return b.knowledge.Prompts.Empty
	}

	for _, e := range b.knowledge.University {
		if strings.Contains(text, e.Key) {
			return fmt.Sprintf("🏫 JRMSU %s\n%s\n%s", e.Title, header, e.Text)
		}
	}

	s := b.knowledge.Sections
	switch {
	case strings.Contains(text, "grading"):
		return s.Grading
	case strings.Contains(text, "competencies") && !strings.Contains(text, "predict"):
		return s.Competencies
	case strings.Contains(text, "steps") || strings.Contains(text, "requirements"):
		return s.Steps
	case strings.Contains(text, "narrative") || strings.Contains(text, "report"):
		return s.Narrative
	case strings.Contains(text, "dtr") || strings.Contains(text, "daily time record"):
		return s.DTR
	}

	for _, trig := range b.knowledge.CompetencyTriggers {
		if strings.Contains(text, trig) {
			return b.competencyReply(message, text)
		}
	}

	if strings.Contains(text, performanceTrigger) {
		return b.performanceReply(text)
	}

	return b.knowledge.Prompts.Default
}

// competencyReply extracts the activity from a quoted string or from the
// tail of the message.
func (b *Bot) competencyReply(raw, text string) string {
	if m := quotedActivity.FindStringSubmatch(raw); m != nil {
		return b.PredictCompetency(m[1])
	}
	parts := activitySplit.Split(text, -1)
	tail := strings.TrimSpace(parts[len(parts)-1])
	if len(strings.Fields(tail)) > 3 {
		return b.PredictCompetency(tail)
	}
	return b.knowledge.Prompts.DescribeActivity
}

// PredictCompetency names the learning competencies that best match an
// activity description. Every competency scoring at least 60% of the best
// score is reported.
func (b *Bot) PredictCompetency(activity string) string {
	activity = strings.ToLower(strings.TrimSpace(activity))
	if activity == "" {
		return b.knowledge.Prompts.DescribeActivity
	}

	matches := b.Competencies(activity)
	switch len(matches) {
	case 0:
		return b.knowledge.Prompts.Unidentified
	case 1:
		return fmt.Sprintf("Based on your described activity, your learning competency is **%s**.", matches[0])
	default:
		return fmt.Sprintf("Based on your described activity, your learning competencies are **%s**.",
			strings.Join(matches, ", "))
	}
}

// Competencies returns, in knowledge-base order, the competencies whose
// score reaches the threshold for activity.
func (b *Bot) Competencies(activity string) []string {
	activity = strings.ToLower(activity)
	scores := make([]float64, len(b.knowledge.Competencies))
	var best float64
	for i := range b.knowledge.Competencies {
		scores[i] = b.knowledge.Competencies[i].score(activity)
		best = max(best, scores[i])
	}
	if best == 0 {
		return nil
	}

	var out []string
	for i, s := range scores {
		if s > 0 && s >= best*competencyThreshold {
			out = append(out, b.knowledge.Competencies[i].Name)
		}
	}
	return out
}

func (b *Bot) performanceReply(text string) string {
	if b.predictor == nil {
		return b.knowledge.Prompts.ModelsNotLoaded
	}
	nums := numberPattern.FindAllString(text, -1)
	if len(nums) < len(performanceKeys) {
		return b.knowledge.Prompts.PerformanceUsage
	}

	snapshot := make(map[string]any, len(performanceKeys))
	for i, key := range performanceKeys {
		v, err := strconv.ParseFloat(nums[i], 64)
		if err != nil {
			return b.knowledge.Prompts.PerformanceUsage
		}
		snapshot[key] = v
	}

	p, err := b.predictor.PredictSnapshot(snapshot)
	if err != nil {
		b.logger.Error("Performance prediction failed", log.ErrorKey, err)
		if ojtErrors.Is(err, ojtErrors.ErrModelsNotLoaded) {
			return b.knowledge.Prompts.ModelsNotLoaded
		}
		return b.knowledge.Prompts.PredictionFailed
	}
	return fmt.Sprintf("📊 Predicted Performance\n%s\nCategory: %s\nConfidence: %.1f%%\nRisk level: %s",
		header, p.PredictedLabel, p.Probability*100, p.RiskLevel)
}
