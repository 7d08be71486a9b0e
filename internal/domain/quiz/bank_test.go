package quiz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBankIsValid(t *testing.T) {
	bank, err := DefaultBank()
	require.NoError(t, err)
	require.NotZero(t, bank.Len())
	assert.Len(t, bank.TransitionFacts, 7)
	assert.Len(t, bank.LoadingFacts, 4)
}

func TestDefaultBankTotalsMatchAnswers(t *testing.T) {
	bank, err := DefaultBank()
	require.NoError(t, err)

	for optionIndex := 0; optionIndex < 4; optionIndex++ {
		v := NewVector()
		for _, q := range bank.Questions {
			v = v.Add(q.Options[optionIndex%len(q.Options)].Weights)
		}
		assert.InDelta(t, float64(bank.Len()), v.Total(), 1e-9)
	}
}

func TestParseBankRejectsBadWeights(t *testing.T) {
	cases := map[string]string{
		"sum": `
transition_facts: [a]
loading_facts: [b]
questions:
  - id: q
    prompt: p
    options:
      - {label: x, weights: {tech: 0.5}}
      - {label: y, weights: {people: 1}}
`,
		"trait": `
transition_facts: [a]
loading_facts: [b]
questions:
  - id: q
    prompt: p
    options:
      - {label: x, weights: {music: 1}}
      - {label: y, weights: {people: 1}}
`,
		"empty": `questions: []`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseBank([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestFactsAndProgress(t *testing.T) {
	bank, err := DefaultBank()
	require.NoError(t, err)

	assert.Equal(t, bank.TransitionFacts[0], bank.TransitionFact(7))
	assert.Equal(t, bank.LoadingFacts[0], bank.LoadingFact(0))
	assert.Equal(t, bank.LoadingFacts[1], bank.LoadingFact(850*time.Millisecond))
	assert.Equal(t, bank.LoadingFacts[0], bank.LoadingFact(3200*time.Millisecond))

	n := bank.Len()
	assert.Equal(t, 100, bank.Progress(n-1))
}
