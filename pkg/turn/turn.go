// Package turn implements the turn-rotation state machine of a multiplayer
// session: forming, then active with strict round-robin, then finished.
// Single-party sessions bypass rotation entirely.
package turn

import (
	"errors"
	"fmt"
	"slices"

	"github.com/jwebster45206/taleparty/pkg/state"
)

var (
	ErrNotForming     = errors.New("session is not forming")
	ErrNotActive      = errors.New("session is not active")
	ErrNotHost        = errors.New("only the host may do this")
	ErrNotMultiplayer = errors.New("session has no turn rotation")
	ErrRosterPending  = errors.New("not every participant has joined")
	ErrNotYourTurn    = errors.New("not your turn")
)

// Start moves a forming multiplayer session to active. Turn order is fixed as
// join order, earliest first, and the first entrant becomes the current actor.
func Start(gs *state.GameSession, userID string) error {
	if !gs.IsMultiplayer() {
		return ErrNotMultiplayer
	}
	if gs.HostID != userID {
		return ErrNotHost
	}
	if gs.Status != state.StatusForming {
		return fmt.Errorf("%w: status is %s", ErrNotForming, gs.Status)
	}

	var pending []string
	for _, p := range gs.Participants {
		if !p.HasJoined() {
			pending = append(pending, p.UserID)
		}
	}
	if len(pending) > 0 {
		return fmt.Errorf("%w: waiting on %v", ErrRosterPending, pending)
	}

	gs.TurnOrder = JoinOrder(gs.Participants)
	gs.CurrentActorID = gs.TurnOrder[0]
	gs.Status = state.StatusActive
	return nil
}

// JoinOrder returns participant ids ordered by join time. Ties keep roster
// order.
func JoinOrder(participants []state.Participant) []string {
	sorted := slices.Clone(participants)
	slices.SortStableFunc(sorted, func(a, b state.Participant) int {
		return a.JoinedAt.Compare(b.JoinedAt)
	})
	order := make([]string, 0, len(sorted))
	for _, p := range sorted {
		order = append(order, p.UserID)
	}
	return order
}

// CheckActor verifies that actorID may act now. Single-party sessions accept
// every submission until they are finished.
func CheckActor(gs *state.GameSession, actorID string) error {
	if !gs.IsMultiplayer() {
		if gs.Status == state.StatusFinished {
			return fmt.Errorf("%w: status is %s", ErrNotActive, gs.Status)
		}
		return nil
	}
	if gs.Status != state.StatusActive {
		return fmt.Errorf("%w: status is %s", ErrNotActive, gs.Status)
	}
	if actorID != gs.CurrentActorID {
		return ErrNotYourTurn
	}
	return nil
}

// Next returns the id after current in order, wrapping to the first. An id
// missing from order yields the first entry.
func Next(order []string, current string) string {
	if len(order) == 0 {
		return current
	}
	i := slices.Index(order, current)
	return order[(i+1)%len(order)]
}

// Advance moves the current actor of a multiplayer session to the next id in
// turn order and returns it. Single-party sessions are left unchanged.
func Advance(gs *state.GameSession) string {
	if gs.IsMultiplayer() && len(gs.TurnOrder) > 0 {
		gs.CurrentActorID = Next(gs.TurnOrder, gs.CurrentActorID)
	}
	return gs.CurrentActorID
}

// Finish ends a session. Only the host may finish it, and only once.
func Finish(gs *state.GameSession, userID string) error {
	if gs.HostID != userID {
		return ErrNotHost
	}
	if gs.Status == state.StatusFinished {
		return fmt.Errorf("%w: already finished", ErrNotActive)
	}
	gs.Status = state.StatusFinished
	return nil
}
