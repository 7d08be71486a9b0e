// Package quiz defines the trait vector and the bundled question bank.
package quiz

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Trait is one axis of the personality vector.
type Trait string

const (
	TraitTech     Trait = "tech"
	TraitBusiness Trait = "business"
	TraitPeople   Trait = "people"
	TraitCreative Trait = "creative"
	TraitHandsOn  Trait = "hands_on"
)

// Traits lists every trait in canonical order. The AI backend's array contract uses this order.
var Traits = [5]Trait{TraitTech, TraitBusiness, TraitPeople, TraitCreative, TraitHandsOn}

// Label returns the human-readable trait name.
func (t Trait) Label() string {
	switch t {
	case TraitTech:
		return "Tech"
	case TraitBusiness:
		return "Business"
	case TraitPeople:
		return "People"
	case TraitCreative:
		return "Creative"
	case TraitHandsOn:
		return "Hands-on"
	default:
		return string(t)
	}
}

// Valid reports whether t is a known trait.
func (t Trait) Valid() bool {
	for _, known := range Traits {
		if t == known {
			return true
		}
	}
	return false
}

// Vector maps each trait to its accumulated score. A missing trait scores zero.
type Vector map[Trait]float64

// NewVector returns an all-zero vector.
func NewVector() Vector {
	v := make(Vector, len(Traits))
	for _, t := range Traits {
		v[t] = 0
	}
	return v
}

// Add returns the elementwise sum of v and weights. Neither operand is modified.
func (v Vector) Add(weights Vector) Vector {
	out := NewVector()
	for _, t := range Traits {
		out[t] = v[t] + weights[t]
	}
	return out
}

// Total returns the sum of all trait scores.
func (v Vector) Total() float64 {
	var total float64
	for _, t := range Traits {
		total += v[t]
	}
	return total
}

// Array returns the scores in canonical trait order.
func (v Vector) Array() [5]float64 {
	var out [5]float64
	for i, t := range Traits {
		out[i] = v[t]
	}
	return out
}

// Clone returns an independent copy.
func (v Vector) Clone() Vector {
	return NewVector().Add(v)
}

// Equal compares two vectors trait by trait.
func (v Vector) Equal(other Vector) bool {
	return v.Array() == other.Array()
}

// FromArray builds a vector from scores in canonical trait order.
func FromArray(scores [5]float64) Vector {
	v := NewVector()
	for i, t := range Traits {
		v[t] = scores[i]
	}
	return v
}

// FromSlice is FromArray for slices of unknown length.
func FromSlice(scores []float64) (Vector, error) {
	if len(scores) != len(Traits) {
		return nil, fmt.Errorf("trait vector needs %d scores, got %d", len(Traits), len(scores))
	}
	var arr [5]float64
	copy(arr[:], scores)
	for _, score := range arr {
		if math.IsNaN(score) || math.IsInf(score, 0) {
			return nil, fmt.Errorf("trait vector contains a non-finite score")
		}
	}
	return FromArray(arr), nil
}

// MarshalJSON encodes the vector as the five-element array the AI backend expects.
func (v Vector) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Array())
}

// UnmarshalJSON accepts the canonical array or an object keyed by trait name.
func (v *Vector) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*v = nil
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var byName map[Trait]float64
		if err := json.Unmarshal(trimmed, &byName); err != nil {
			return err
		}
		out := NewVector()
		for trait, score := range byName {
			if !trait.Valid() {
				return fmt.Errorf("unknown trait %q", trait)
			}
			out[trait] = score
		}
		*v = out
		return nil
	}

	var scores []float64
	if err := json.Unmarshal(trimmed, &scores); err != nil {
		return fmt.Errorf("decode trait vector: %w", err)
	}
	parsed, err := FromSlice(scores)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
