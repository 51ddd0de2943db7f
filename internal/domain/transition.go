package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNegativeValue is returned for negative currency amounts
var ErrNegativeValue = errors.New("value must not be negative")

// ReasonRequiredError is returned when a destination stage needs a sub-reason
// that the caller did not supply. Options lists what may be chosen.
type ReasonRequiredError struct {
	Stage   Stage
	Options []ReasonOption
}

func (e *ReasonRequiredError) Error() string {
	return fmt.Sprintf("a reason is required to move a deal to %s", e.Stage.Label())
}

// InvalidReasonError is returned when a sub-reason does not belong to the stage
type InvalidReasonError struct {
	Stage  Stage
	Reason string
}

func (e *InvalidReasonError) Error() string {
	return fmt.Sprintf("invalid reason %q for %s", e.Reason, e.Stage.Label())
}

// TransitionRequest is a requested stage change plus the close details that
// may accompany it
type TransitionRequest struct {
	To          Stage
	Position    *int
	Reason      string
	ActualValue decimal.NullDecimal
	CloseNotes  *string
}

// Transition summarises what ApplyTransition changed
type Transition struct {
	From               Stage
	To                 Stage
	StageChanged       bool
	CloseDateSet       bool
	ActualValueChanged bool
}

// ValidateReason checks that reason is acceptable for entering stage. Stages
// that do not need a reason accept an empty one.
func ValidateReason(stage Stage, reason string) error {
	switch stage {
	case StageClosedLost:
		if reason == "" {
			return &ReasonRequiredError{Stage: stage, Options: ReasonOptions(stage)}
		}
		if !ClosedLostReason(reason).Valid() {
			return &InvalidReasonError{Stage: stage, Reason: reason}
		}
	case StageDeclinedToBid:
		if reason == "" {
			return &ReasonRequiredError{Stage: stage, Options: ReasonOptions(stage)}
		}
		if !DeclinedReason(reason).Valid() {
			return &InvalidReasonError{Stage: stage, Reason: reason}
		}
	}
	return nil
}

// StampStageChange derives the stage-dependent fields of next from the
// previously persisted stage. stage_changed_at moves only when the stage
// differs, and actual_close_date is set on the first entry into a closed
// stage and never overwritten.
func StampStageChange(prevStage Stage, next *Deal, now time.Time) (stageChanged, closeDateSet bool) {
	if prevStage == next.Stage {
		return false, false
	}
	next.StageChangedAt = now
	if next.Stage.IsClosed() && next.ActualCloseDate == nil {
		next.ActualCloseDate = DateOf(now)
		closeDateSet = true
	}
	return true, closeDateSet
}

// ApplyTransition computes the deal that results from moving prev to req.To.
// prev is not modified. On error the returned deal equals prev.
func ApplyTransition(prev Deal, req TransitionRequest, now time.Time) (Deal, Transition, error) {
	if !req.To.Valid() {
		return prev, Transition{}, fmt.Errorf("invalid stage: %q", req.To)
	}
	if err := ValidateReason(req.To, req.Reason); err != nil {
		return prev, Transition{}, err
	}
	if req.ActualValue.Valid && req.ActualValue.Decimal.IsNegative() {
		return prev, Transition{}, ErrNegativeValue
	}

	next := prev
	next.Stage = req.To
	if req.Position != nil {
		next.Position = *req.Position
	}

	switch req.To {
	case StageClosedLost:
		next.ClosedLostReason = ClosedLostReason(req.Reason)
	case StageDeclinedToBid:
		next.DeclinedReason = DeclinedReason(req.Reason)
	case StageClosedWon:
		switch {
		case req.ActualValue.Valid:
			next.ActualValue = req.ActualValue
		case !next.ActualValue.Valid || next.ActualValue.Decimal.IsZero():
			next.ActualValue = next.EstimatedValue
		}
	}

	if req.CloseNotes != nil && *req.CloseNotes != "" {
		next.CloseNotes = *req.CloseNotes
	}

	t := Transition{From: prev.Stage, To: req.To}
	t.StageChanged, t.CloseDateSet = StampStageChange(prev.Stage, &next, now)
	t.ActualValueChanged = !nullDecimalEqual(prev.ActualValue, next.ActualValue)
	return next, t, nil
}

func nullDecimalEqual(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}
