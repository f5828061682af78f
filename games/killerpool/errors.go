/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package killerpool

import "errors"

var (
	// ErrConflict means the roster or match cannot change in its current state.
	ErrConflict = errors.New("conflict")

	ErrNotFound        = errors.New("player not found")
	ErrAlreadySelected = errors.New("player already selected")

	// ErrInvalidState means there is no legal current player: the match
	// has not started, is already over, or the roster is too small.
	ErrInvalidState = errors.New("invalid match state")

	ErrUnauthorized = errors.New("unauthorized")
)
