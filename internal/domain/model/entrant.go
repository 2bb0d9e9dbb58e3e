// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Boxer attribute bounds.
const (
	MinWeight = 125
	MinAge    = 18
	MaxAge    = 40
)

// Attributes are the caller supplied fields of an entrant.
type Attributes struct {
	Name   string
	Weight int
	Height int
	Reach  float64
	Age    int
}

// Normalize returns a copy with surrounding whitespace removed from the name.
func (a Attributes) Normalize() Attributes {
	a.Name = strings.TrimSpace(a.Name)
	return a
}

// Validate checks every attribute against its allowed range.
func (a Attributes) Validate() error {
	switch {
	case strings.TrimSpace(a.Name) == "":
		return fmt.Errorf("%w: name must not be empty", ErrValidation)
	case a.Weight < MinWeight:
		return fmt.Errorf("%w: weight must be at least %d", ErrValidation, MinWeight)
	case a.Height <= 0:
		return fmt.Errorf("%w: height must be positive", ErrValidation)
	case math.IsNaN(a.Reach) || math.IsInf(a.Reach, 0) || a.Reach <= 0:
		return fmt.Errorf("%w: reach must be a positive finite number", ErrValidation)
	case a.Age < MinAge || a.Age > MaxAge:
		return fmt.Errorf("%w: age must be between %d and %d", ErrValidation, MinAge, MaxAge)
	}
	return nil
}

// Entrant is a persisted competitor together with its running record.
type Entrant struct {
	ID        int64
	Name      string
	Weight    int
	Height    int
	Reach     float64
	Age       int
	Fights    int64
	Wins      int64
	Deleted   bool
	CreatedAt time.Time
}

// Attributes returns the entrant's caller supplied fields.
func (e Entrant) Attributes() Attributes {
	return Attributes{Name: e.Name, Weight: e.Weight, Height: e.Height, Reach: e.Reach, Age: e.Age}
}

// WeightClass classifies the entrant by weight.
func (e Entrant) WeightClass() WeightClass {
	return ClassifyWeight(e.Weight)
}

// Losses is fights minus wins.
func (e Entrant) Losses() int64 {
	return e.Fights - e.Wins
}

// WinPct is wins/fights, or 0 when the entrant has not fought.
func (e Entrant) WinPct() float64 {
	if e.Fights == 0 {
		return 0
	}
	return float64(e.Wins) / float64(e.Fights)
}

// WeightClass is a descriptive weight division.
type WeightClass string

// Weight classes, heaviest first.
const (
	Heavyweight   WeightClass = "HEAVYWEIGHT"
	Middleweight  WeightClass = "MIDDLEWEIGHT"
	Lightweight   WeightClass = "LIGHTWEIGHT"
	Featherweight WeightClass = "FEATHERWEIGHT"
)

// ClassifyWeight maps a weight to its class. Weights below the featherweight
// floor still report FEATHERWEIGHT; validation rejects them earlier.
func ClassifyWeight(weight int) WeightClass {
	switch {
	case weight >= 203:
		return Heavyweight
	case weight >= 166:
		return Middleweight
	case weight >= 133:
		return Lightweight
	default:
		return Featherweight
	}
}

// ContestResult describes one resolved contest.
type ContestResult struct {
	WinnerID          int64
	LoserID           int64
	WinnerSkill       float64
	LoserSkill        float64
	WinnerProbability float64

	// FirstID is the entrant that entered the arena first and
	// FirstWinProbability its chance of winning. Roll is the uniform draw;
	// the first entrant wins iff Roll < FirstWinProbability.
	FirstID             int64
	FirstWinProbability float64
	Roll                float64
}

// Metric names a leaderboard ranking statistic.
type Metric string

// Supported leaderboard metrics.
const (
	MetricWins   Metric = "wins"
	MetricWinPct Metric = "win_pct"
)

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(s); m {
	case MetricWins, MetricWinPct:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q (want %q or %q)", ErrInvalidSort, s, MetricWins, MetricWinPct)
	}
}
