// Package types contains common types used across the application
package types

// Entry represents a leaderboard entry.
type Entry struct {
	Rank         int     `json:"rank"`
	EntityID     string  `json:"entity_id"`
	Gender       string  `json:"gender"`
	WinCount     int64   `json:"win_count"`
	BattleCount  int64   `json:"battle_count"`
	WilsonScore  float64 `json:"wilson_score"`
	BayesScore   float64 `json:"bayes_score"`
	AverageScore float64 `json:"average_score"`
}
