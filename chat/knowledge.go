package chat

import (
	_ "embed"
	"regexp"

	"gopkg.in/yaml.v3"

	ojtErrors "github.com/jrmsu/ojtinsight/pkg/errors"
)

//go:embed knowledge.yaml
var defaultKnowledge []byte

// Entry is a university information topic.
type Entry struct {
	Key   string `yaml:"key"`
	Title string `yaml:"title"`
	Text  string `yaml:"text"`
}

// Sections holds the OJT guide texts.
type Sections struct {
	Grading      string `yaml:"grading"`
	Competencies string `yaml:"competencies"`
	Steps        string `yaml:"steps"`
	Narrative    string `yaml:"narrative"`
	DTR          string `yaml:"dtr"`
}

// Prompts are the fixed replies that carry no data.
type Prompts struct {
	Empty            string `yaml:"empty"`
	DescribeActivity string `yaml:"describe_activity"`
	Unidentified     string `yaml:"unidentified"`
	ModelsNotLoaded  string `yaml:"models_not_loaded"`
	PredictionFailed string `yaml:"prediction_failed"`
	PerformanceUsage string `yaml:"performance_usage"`
	Default          string `yaml:"default"`
}

// Competency is a learning competency with weighted keywords.
type Competency struct {
	Name     string             `yaml:"name"`
	Keywords map[string]float64 `yaml:"keywords"`

	patterns []weightedPattern
}

type weightedPattern struct {
	re     *regexp.Regexp
	weight float64
}

// Knowledge is everything the bot can say.
type Knowledge struct {
	University         []Entry      `yaml:"university"`
	Sections           Sections     `yaml:"sections"`
	Prompts            Prompts      `yaml:"prompts"`
	CompetencyTriggers []string     `yaml:"competency_triggers"`
	Competencies       []Competency `yaml:"competencies"`
}

// DefaultKnowledge parses the embedded knowledge base.
func DefaultKnowledge() (*Knowledge, error) {
	return ParseKnowledge(defaultKnowledge)
}

// ParseKnowledge decodes a YAML knowledge base and compiles the keyword
// patterns. Keywords match on word boundaries.
func ParseKnowledge(data []byte) (*Knowledge, error) {
	var k Knowledge
	if err := yaml.Unmarshal(data, &k); err != nil {
		return nil, ojtErrors.Wrap(err, "failed to parse knowledge base")
	}
	for i := range k.Competencies {
		c := &k.Competencies[i]
		if c.Name == "" {
			return nil, ojtErrors.NewValidationError("competencies.name", "cannot be empty", i)
		}
		for term, w := range c.Keywords {
			if w <= 0 {
				return nil, ojtErrors.NewValidationError("competencies.keywords",
					"weight must be positive", term)
			}
			c.patterns = append(c.patterns, weightedPattern{
				re:     regexp.MustCompile(`\b` + regexp.QuoteMeta(term) + `\b`),
				weight: w,
			})
		}
	}
	return &k, nil
}

// score sums the weights of the keywords found in activity, which must be
// lower case.
func (c *Competency) score(activity string) float64 {
	var total float64
	for _, p := range c.patterns {
		if p.re.MatchString(activity) {
			total += p.weight
		}
	}
	return total
}
