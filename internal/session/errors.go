package session

import (
	"errors"
	"fmt"

	"github.com/jwebster45206/taleparty/internal/storage"
	"github.com/jwebster45206/taleparty/pkg/turn"
)

// Error kinds returned by the orchestrator. Callers match them with errors.Is;
// the wrapped cause carries the human-readable detail.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidState       = errors.New("invalid session state")
	ErrTurnViolation      = errors.New("turn violation")
	ErrNarrationFailure   = errors.New("narration failed")
	ErrPersistenceFailure = errors.New("persistence failed")
	ErrConflict           = errors.New("session was modified concurrently")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidInput       = errors.New("invalid input")
)

// storageError classifies a storage error.
func storageError(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%w: session: %w", ErrNotFound, err)
	case errors.Is(err, storage.ErrVersionConflict), errors.Is(err, storage.ErrAlreadyExists):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	default:
		return fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}
}

// turnError classifies a turn engine error.
func turnError(err error) error {
	switch {
	case errors.Is(err, turn.ErrNotYourTurn):
		return fmt.Errorf("%w: %w", ErrTurnViolation, err)
	case errors.Is(err, turn.ErrNotHost):
		return fmt.Errorf("%w: %w", ErrForbidden, err)
	default:
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
}
