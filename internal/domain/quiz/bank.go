package quiz

import (
	_ "embed"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadingFactInterval is how long each loading fact stays on screen while the result is prepared.
const LoadingFactInterval = 800 * time.Millisecond

//go:embed questions.yaml
var embeddedBank []byte

// Option is one answer to a question together with the trait weights it contributes.
type Option struct {
	Label   string `yaml:"label" json:"label"`
	Weights Vector `yaml:"weights" json:"-"`
}

// Question is an immutable scenario prompt.
type Question struct {
	ID      string   `yaml:"id" json:"id"`
	Prompt  string   `yaml:"prompt" json:"prompt"`
	Options []Option `yaml:"options" json:"options"`
}

// Bank is the validated question set plus the facts shown between and after questions.
type Bank struct {
	Questions       []Question `yaml:"questions"`
	TransitionFacts []string   `yaml:"transition_facts"`
	LoadingFacts    []string   `yaml:"loading_facts"`
}

var (
	defaultBank     *Bank
	defaultBankErr  error
	defaultBankOnce sync.Once
)

// DefaultBank parses and validates the embedded bank once.
func DefaultBank() (*Bank, error) {
	defaultBankOnce.Do(func() {
		defaultBank, defaultBankErr = ParseBank(embeddedBank)
	})
	return defaultBank, defaultBankErr
}

// ParseBank decodes a YAML bank and validates it.
func ParseBank(data []byte) (*Bank, error) {
	var bank Bank
	if err := yaml.Unmarshal(data, &bank); err != nil {
		return nil, fmt.Errorf("parse question bank: %w", err)
	}
	if err := bank.Validate(); err != nil {
		return nil, err
	}
	return &bank, nil
}

// Validate enforces that every option's weights use known traits, are non-negative and sum to 1,
// so a vector's total always equals the number of answered questions.
func (b *Bank) Validate() error {
	if len(b.Questions) == 0 {
		return fmt.Errorf("question bank is empty")
	}
	if len(b.TransitionFacts) == 0 || len(b.LoadingFacts) == 0 {
		return fmt.Errorf("question bank needs transition and loading facts")
	}
	seen := make(map[string]struct{}, len(b.Questions))
	for qi, q := range b.Questions {
		if strings.TrimSpace(q.ID) == "" || strings.TrimSpace(q.Prompt) == "" {
			return fmt.Errorf("question %d: id and prompt are required", qi)
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("question %q: duplicate id", q.ID)
		}
		seen[q.ID] = struct{}{}
		if len(q.Options) < 2 {
			return fmt.Errorf("question %q: needs at least two options", q.ID)
		}
		for oi, opt := range q.Options {
			if strings.TrimSpace(opt.Label) == "" {
				return fmt.Errorf("question %q option %d: label is required", q.ID, oi)
			}
			var sum float64
			for trait, weight := range opt.Weights {
				if !trait.Valid() {
					return fmt.Errorf("question %q option %d: unknown trait %q", q.ID, oi, trait)
				}
				if weight < 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
					return fmt.Errorf("question %q option %d: invalid weight %v for %s", q.ID, oi, weight, trait)
				}
				sum += weight
			}
			if math.Abs(sum-1) > 1e-9 {
				return fmt.Errorf("question %q option %d: weights sum to %v, want 1", q.ID, oi, sum)
			}
		}
	}
	return nil
}

// Len returns the number of questions.
func (b *Bank) Len() int {
	return len(b.Questions)
}

// TransitionFact returns the fact shown after answering question index.
func (b *Bank) TransitionFact(index int) string {
	if len(b.TransitionFacts) == 0 || index < 0 {
		return ""
	}
	return b.TransitionFacts[index%len(b.TransitionFacts)]
}

// LoadingFact returns the fact on screen after elapsed time in the finalizing phase.
func (b *Bank) LoadingFact(elapsed time.Duration) string {
	if len(b.LoadingFacts) == 0 {
		return ""
	}
	if elapsed < 0 {
		elapsed = 0
	}
	step := int(elapsed / LoadingFactInterval)
	return b.LoadingFacts[step%len(b.LoadingFacts)]
}

// Progress returns the rounded percentage shown while question index is on screen.
func (b *Bank) Progress(index int) int {
	if len(b.Questions) == 0 {
		return 0
	}
	return int(math.Round(float64(index+1) / float64(len(b.Questions)) * 100))
}
