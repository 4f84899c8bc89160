package game

import (
	"errors"
	"fmt"
)

// Kind classifies errors reported back to the issuing client.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindCapacity
	KindNotFound
	KindFatalAllocation
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindCapacity:
		return "capacity"
	case KindNotFound:
		return "not_found"
	case KindFatalAllocation:
		return "fatal_allocation"
	default:
		return "internal"
	}
}

// Error is a rejected command. It never carries a partial state change.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// Is matches on kind and message so sentinel values work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Msg == e.Msg
}

func Validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func Capacityf(format string, args ...any) error {
	return &Error{Kind: KindCapacity, Msg: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

var (
	ErrRoomNotFound       = &Error{Kind: KindNotFound, Msg: "Room not found"}
	ErrRoomFull           = &Error{Kind: KindCapacity, Msg: "Room is full"}
	ErrGameInProgress     = &Error{Kind: KindValidation, Msg: "Game already in progress"}
	ErrNotHost            = &Error{Kind: KindValidation, Msg: "Only the host can do that"}
	ErrNotClueGiver       = &Error{Kind: KindValidation, Msg: "Only the clue-giver can mark answers"}
	ErrNotBopper          = &Error{Kind: KindValidation, Msg: "Only designated boppers can bop"}
	ErrNotPlaying         = &Error{Kind: KindValidation, Msg: "No turn is being played"}
	ErrNotInReview        = &Error{Kind: KindValidation, Msg: "The turn is not over yet"}
	ErrClueGiverGone      = &Error{Kind: KindValidation, Msg: "The clue-giver left; the turn has ended"}
	ErrNotInRoom          = &Error{Kind: KindValidation, Msg: "Join a room first"}
	ErrRoleLocked         = &Error{Kind: KindValidation, Msg: "You cannot switch teams while you have a role this turn"}
	ErrCodeSpaceExhausted = &Error{Kind: KindFatalAllocation, Msg: "Could not generate unique room code"}
)
