// Package model contains domain models passed between layers.
package model

import "time"

// Gender partitions matchmaking and ranking. Rankings are always computed
// within a single partition, never mixed.
type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderUnknown Gender = "unknown"
)

// ParseGender normalizes free-form input to a Gender. Anything that is not
// recognizably male or female maps to GenderUnknown.
func ParseGender(s string) Gender {
	switch s {
	case string(GenderMale):
		return GenderMale
	case string(GenderFemale):
		return GenderFemale
	default:
		return GenderUnknown
	}
}

// Analysis is the scored evaluation of one face image. Field names follow
// the wire contract consumed by the UI and persistence layers.
//
// All numeric fields are 0 when extraction failed. 0 doubles as the
// "not found" sentinel; see the parse package for how that interacts with
// average computation.
type Analysis struct {
	GoldenRatio        float64 `json:"goldenRatio"`
	GoldenRatioDesc    string  `json:"goldenRatioDesc"`
	FacialFeatures     float64 `json:"facialFeatures"`
	FacialFeaturesDesc string  `json:"facialFeaturesDesc"`
	SkinTexture        float64 `json:"skinTexture"`
	SkinTextureDesc    string  `json:"skinTextureDesc"`
	Impressiveness     float64 `json:"impressiveness"`
	ImpressivenessDesc string  `json:"impressivenessDesc"`
	GrowingCharm       float64 `json:"growingCharm"`
	GrowingCharmDesc   string  `json:"growingCharmDesc"`

	AverageScore float64 `json:"averageScore"`

	// Persona is a short tagline; empty when the model omitted it.
	Persona string `json:"persona,omitempty"`

	// Description carries the overall verdict in comparison contexts, and
	// the raw model text when parsing failed entirely.
	Description string `json:"description,omitempty"`

	// Rank is assigned only in multi-way comparisons (1-based, positional).
	Rank int `json:"rank,omitempty"`
}

// Entity is a rankable participant: an uploaded image plus its accumulated
// battle counters.
//
// Invariant: 0 <= WinCount <= BattleCount. A stored record violating this
// is a data-integrity fault; the ranking engine excludes it and the store's
// reconciliation pass repairs it.
type Entity struct {
	ID          string    `json:"id"`
	Gender      Gender    `json:"gender"`
	WinCount    int64     `json:"winCount"`
	BattleCount int64     `json:"battleCount"`
	LossCount   int64     `json:"lossCount"`
	Analysis    Analysis  `json:"analysis"`
	Image       []byte    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Valid reports whether the entity's counters satisfy the invariant.
func (e *Entity) Valid() bool {
	return e.WinCount >= 0 && e.BattleCount >= 0 && e.WinCount <= e.BattleCount
}

// Battle is an immutable record of one completed comparison between two or
// more entities. Created once, never mutated.
type Battle struct {
	ID             string    `json:"id"`
	ParticipantIDs []string  `json:"participantIds"`
	WinnerID       string    `json:"winnerId"`
	RawResult      string    `json:"rawResult"`
	CreatedAt      time.Time `json:"createdAt"`
}
