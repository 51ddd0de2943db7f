package domain

import (
	"fmt"
	"strings"
)

// Stage is a pipeline stage of a deal
type Stage string

const (
	StageNewRequest         Stage = "NEW_REQUEST"
	StageEngaged            Stage = "ENGAGED"
	StageEstimateInProgress Stage = "ESTIMATE_IN_PROGRESS"
	StageEstimateSent       Stage = "ESTIMATE_SENT"
	StageFollowUp           Stage = "FOLLOW_UP"
	StageNegotiation        Stage = "NEGOTIATION"
	StageClosedWon          Stage = "CLOSED_WON"
	StageClosedLost         Stage = "CLOSED_LOST"
	StageDeclinedToBid      Stage = "DECLINED_TO_BID"
)

var stageOrder = [...]Stage{
	StageNewRequest,
	StageEngaged,
	StageEstimateInProgress,
	StageEstimateSent,
	StageFollowUp,
	StageNegotiation,
	StageClosedWon,
	StageClosedLost,
	StageDeclinedToBid,
}

// Stages returns every stage in board order
func Stages() []Stage {
	out := make([]Stage, len(stageOrder))
	copy(out, stageOrder[:])
	return out
}

// ActiveStages returns the stages that count toward pipeline value
func ActiveStages() []Stage {
	var out []Stage
	for _, s := range stageOrder {
		if s.IsActive() {
			out = append(out, s)
		}
	}
	return out
}

// ClosedStages returns won, lost and declined
func ClosedStages() []Stage {
	var out []Stage
	for _, s := range stageOrder {
		if s.IsClosed() {
			out = append(out, s)
		}
	}
	return out
}

// ParseStage converts a code into a Stage, rejecting unknown codes
func ParseStage(code string) (Stage, error) {
	s := Stage(strings.ToUpper(strings.TrimSpace(code)))
	if !s.Valid() {
		return "", fmt.Errorf("invalid stage: %q", code)
	}
	return s, nil
}

// Valid reports whether s is one of the nine stages
func (s Stage) Valid() bool {
	return s.Index() >= 0
}

// Index is the position of s in board order, -1 when unknown
func (s Stage) Index() int {
	switch s {
	case StageNewRequest:
		return 0
	case StageEngaged:
		return 1
	case StageEstimateInProgress:
		return 2
	case StageEstimateSent:
		return 3
	case StageFollowUp:
		return 4
	case StageNegotiation:
		return 5
	case StageClosedWon:
		return 6
	case StageClosedLost:
		return 7
	case StageDeclinedToBid:
		return 8
	}
	return -1
}

// Label is the display name of the stage
func (s Stage) Label() string {
	switch s {
	case StageNewRequest:
		return "New Request"
	case StageEngaged:
		return "Engaged"
	case StageEstimateInProgress:
		return "Estimate In Progress"
	case StageEstimateSent:
		return "Estimate Sent"
	case StageFollowUp:
		return "Follow Up"
	case StageNegotiation:
		return "Negotiation"
	case StageClosedWon:
		return "Closed Won"
	case StageClosedLost:
		return "Closed Lost"
	case StageDeclinedToBid:
		return "Declined to Bid"
	}
	return string(s)
}

// DefaultProbability is the win probability suggested when a deal enters s
func (s Stage) DefaultProbability() int {
	switch s {
	case StageNewRequest:
		return 10
	case StageEngaged:
		return 20
	case StageEstimateInProgress:
		return 30
	case StageEstimateSent:
		return 50
	case StageFollowUp:
		return 60
	case StageNegotiation:
		return 75
	case StageClosedWon:
		return 100
	case StageClosedLost, StageDeclinedToBid:
		return 0
	}
	return DefaultProbability
}

// IsActive reports whether s is an open pipeline stage
func (s Stage) IsActive() bool {
	switch s {
	case StageNewRequest, StageEngaged, StageEstimateInProgress,
		StageEstimateSent, StageFollowUp, StageNegotiation:
		return true
	}
	return false
}

// IsClosed reports whether s is won, lost or declined
func (s Stage) IsClosed() bool {
	switch s {
	case StageClosedWon, StageClosedLost, StageDeclinedToBid:
		return true
	}
	return false
}

// RequiresReason reports whether entering s needs a sub-reason
func (s Stage) RequiresReason() bool {
	switch s {
	case StageClosedLost, StageDeclinedToBid:
		return true
	}
	return false
}

// Outcome is the metrics label for closed stages
func (s Stage) Outcome() string {
	switch s {
	case StageClosedWon:
		return "won"
	case StageClosedLost:
		return "lost"
	case StageDeclinedToBid:
		return "declined"
	}
	return ""
}

// ClosedLostReason explains why a deal was lost
type ClosedLostReason string

const (
	LostReasonPrice        ClosedLostReason = "PRICE"
	LostReasonTimeline     ClosedLostReason = "TIMELINE"
	LostReasonCompetitor   ClosedLostReason = "COMPETITOR"
	LostReasonUnresponsive ClosedLostReason = "UNRESPONSIVE"
	LostReasonOther        ClosedLostReason = "OTHER"
)

func (r ClosedLostReason) Valid() bool {
	switch r {
	case LostReasonPrice, LostReasonTimeline, LostReasonCompetitor, LostReasonUnresponsive, LostReasonOther:
		return true
	}
	return false
}

func (r ClosedLostReason) Label() string {
	switch r {
	case LostReasonPrice:
		return "Price Too High"
	case LostReasonTimeline:
		return "Timeline Issues"
	case LostReasonCompetitor:
		return "Lost to Competitor"
	case LostReasonUnresponsive:
		return "Client Unresponsive"
	case LostReasonOther:
		return "Other"
	}
	return string(r)
}

// DeclinedReason explains why the company declined to bid
type DeclinedReason string

const (
	DeclinedTooSmall    DeclinedReason = "TOO_SMALL"
	DeclinedNotOurScope DeclinedReason = "NOT_OUR_SCOPE"
	DeclinedTiming      DeclinedReason = "TIMING"
	DeclinedCapacity    DeclinedReason = "CAPACITY"
	DeclinedOther       DeclinedReason = "OTHER"
)

func (r DeclinedReason) Valid() bool {
	switch r {
	case DeclinedTooSmall, DeclinedNotOurScope, DeclinedTiming, DeclinedCapacity, DeclinedOther:
		return true
	}
	return false
}

func (r DeclinedReason) Label() string {
	switch r {
	case DeclinedTooSmall:
		return "Project Too Small"
	case DeclinedNotOurScope:
		return "Not Our Scope of Work"
	case DeclinedTiming:
		return "Timing Not Right"
	case DeclinedCapacity:
		return "No Capacity"
	case DeclinedOther:
		return "Other"
	}
	return string(r)
}

// ReasonOption is a selectable sub-reason
type ReasonOption struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// ReasonOptions lists the sub-reasons a caller must choose from to enter s.
// It is empty for stages that need no reason.
func ReasonOptions(s Stage) []ReasonOption {
	switch s {
	case StageClosedLost:
		reasons := []ClosedLostReason{LostReasonPrice, LostReasonTimeline, LostReasonCompetitor, LostReasonUnresponsive, LostReasonOther}
		out := make([]ReasonOption, 0, len(reasons))
		for _, r := range reasons {
			out = append(out, ReasonOption{Code: string(r), Label: r.Label()})
		}
		return out
	case StageDeclinedToBid:
		reasons := []DeclinedReason{DeclinedTooSmall, DeclinedNotOurScope, DeclinedTiming, DeclinedCapacity, DeclinedOther}
		out := make([]ReasonOption, 0, len(reasons))
		for _, r := range reasons {
			out = append(out, ReasonOption{Code: string(r), Label: r.Label()})
		}
		return out
	}
	return nil
}
