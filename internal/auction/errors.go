package auction

import (
	"errors"
	"fmt"
)

// Errors returned by session operations. Bid rejections arrive wrapped in
// a *ValidationError.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionFull     = errors.New("session is full")
	ErrNameTaken       = errors.New("name is already taken")
	ErrAlreadyStarted  = errors.New("auction has already started")
	ErrNotAdmin        = errors.New("only the admin may do that")
	ErrTooManyBots     = errors.New("too many automated bidders")
	ErrInvalidBudget   = errors.New("budget must be positive")

	ErrNotActive          = errors.New("auction is not active")
	ErrNoItem             = errors.New("no item is on offer")
	ErrUnknownBidder      = errors.New("bidder is not in this session")
	ErrBotBidder          = errors.New("automated bidders cannot bid by hand")
	ErrAlreadyHighest     = errors.New("you are already the highest bidder")
	ErrBidTooLow          = errors.New("bid must exceed the current bid")
	ErrOffLadder          = errors.New("bid is not the next step on the ladder")
	ErrRoleForbidden      = errors.New("roster cannot take this role")
	ErrInsufficientBudget = errors.New("insufficient budget")
)

// ValidationError reports a rejected bid. It is returned to the bidder
// only and never broadcast.
type ValidationError struct {
	Bidder string
	Reason error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("bid by %s rejected: %v", e.Bidder, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Reason }

func reject(bidder string, reason error) error {
	return &ValidationError{Bidder: bidder, Reason: reason}
}
