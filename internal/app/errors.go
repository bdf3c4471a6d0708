package app

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotRanked     = errors.New("entity not ranked")
	ErrBadBattleSize = errors.New("battle needs 2 to 4 participants")
	ErrEmptyImage    = errors.New("empty image")
	ErrQueueFull     = errors.New("battle queue full")
	ErrWinnerUnknown = errors.New("could not determine winner")
)
