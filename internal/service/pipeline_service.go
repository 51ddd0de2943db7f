package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"crm-pipeline-api/internal/domain"
	"crm-pipeline-api/internal/dto"
	"crm-pipeline-api/internal/metrics"
	"crm-pipeline-api/internal/repository"
	"crm-pipeline-api/internal/response"
)

// PipelineService defines the Kanban board operations: the stage
// transitions and the per-stage aggregates
type PipelineService interface {
	GetBoard(ctx context.Context, filters dto.BoardFilters) (*dto.BoardResponse, error)
	MoveDeal(ctx context.Context, req *dto.MoveDealRequest) (*dto.MoveDealResponse, error)
	CloseDeal(ctx context.Context, dealID uuid.UUID, req *dto.CloseDealRequest) (*dto.MoveDealResponse, error)
	ReorderStage(ctx context.Context, stage string, req *dto.ReorderStageRequest) error
}

// pipelineServiceImpl is the implementation of PipelineService
type pipelineServiceImpl struct {
	dealRepo  repository.DealRepository
	activity  ActivityService
	tx        repository.Transactor
	cache     BoardCache
	publisher BoardPublisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewPipelineService creates a new instance of PipelineService. cache and
// publisher may be nil.
func NewPipelineService(
	dealRepo repository.DealRepository,
	activity ActivityService,
	tx repository.Transactor,
	cache BoardCache,
	publisher BoardPublisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) PipelineService {
	if cache == nil {
		cache = noopBoardCache{}
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &pipelineServiceImpl{
		dealRepo:  dealRepo,
		activity:  activity,
		tx:        tx,
		cache:     cache,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// GetBoard returns every stage in board order with its deals and totals
func (s *pipelineServiceImpl) GetBoard(ctx context.Context, filters dto.BoardFilters) (*dto.BoardResponse, error) {
	key := filters.CacheKey()
	if board, ok := s.cache.Get(ctx, key); ok {
		s.recordCache(true)
		return board, nil
	}
	s.recordCache(false)

	deals, err := s.dealRepo.FindForBoard(ctx, filters)
	if err != nil {
		return nil, response.NewAppError(response.ErrCodeInternal, "Failed to fetch deals", err.Error())
	}

	board := toBoardResponse(domain.BuildBoard(deals), s.now())
	s.cache.Set(ctx, key, board)
	return board, nil
}

// MoveDeal moves a deal to another stage and/or position. Moving into a stage
// that needs a sub-reason without one returns a prompt and changes nothing;
// reordering a deal already in that stage does not prompt.
func (s *pipelineServiceImpl) MoveDeal(ctx context.Context, req *dto.MoveDealRequest) (*dto.MoveDealResponse, error) {
	actorID, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	stage, err := domain.ParseStage(req.Stage)
	if err != nil {
		return nil, validationError(err.Error(), "stage")
	}

	reason := req.Reason
	if stage.RequiresReason() && reason == "" {
		current, err := s.dealRepo.FindByID(ctx, req.DealID)
		if err != nil {
			return nil, lookupError(err, "Deal not found", "Failed to fetch deal")
		}
		if current.Stage != stage {
			return &dto.MoveDealResponse{
				NeedsCloseReason: true,
				ReasonOptions:    domain.ReasonOptions(stage),
			}, nil
		}
		// reordering inside the column keeps the recorded reason
		reason = closeReason(current)
	}

	deal, prev, t, err := s.transition(ctx, actorID, req.DealID, domain.TransitionRequest{
		To:          stage,
		Position:    req.Position,
		Reason:      reason,
		ActualValue: req.ActualValue,
		CloseNotes:  req.CloseNotes,
	}, req.Version, false)
	if err != nil {
		return nil, err
	}

	source := prev
	if req.SourceStage != "" {
		if st, err := domain.ParseStage(req.SourceStage); err == nil {
			source = st
		}
	}

	event := EventDealMoved
	if t.StageChanged && deal.Stage.IsClosed() {
		event = EventDealClosed
	}
	return s.afterTransition(ctx, deal, t, source, event), nil
}

// CloseDeal moves a deal into won, lost or declined with its close details
func (s *pipelineServiceImpl) CloseDeal(ctx context.Context, dealID uuid.UUID, req *dto.CloseDealRequest) (*dto.MoveDealResponse, error) {
	actorID, err := actorFromContext(ctx)
	if err != nil {
		return nil, err
	}

	stage, err := domain.ParseStage(req.Stage)
	if err != nil {
		return nil, validationError(err.Error(), "stage")
	}
	if !stage.IsClosed() {
		return nil, validationError("Stage must be CLOSED_WON, CLOSED_LOST or DECLINED_TO_BID", "stage")
	}

	deal, prev, t, err := s.transition(ctx, actorID, dealID, domain.TransitionRequest{
		To:          stage,
		Reason:      req.Reason,
		ActualValue: req.ActualValue,
		CloseNotes:  req.CloseNotes,
	}, req.Version, true)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Deal closed",
		zap.String("deal_id", deal.ID.String()),
		zap.String("stage", string(deal.Stage)),
		zap.String("actor_id", actorID.String()))

	return s.afterTransition(ctx, deal, t, prev, EventDealClosed), nil
}

// ReorderStage assigns positions 0..n-1 to the deals of a stage in the given
// order. dealIDs must list exactly the deals currently in the stage.
func (s *pipelineServiceImpl) ReorderStage(ctx context.Context, stageCode string, req *dto.ReorderStageRequest) error {
	if _, err := actorFromContext(ctx); err != nil {
		return err
	}

	stage, err := domain.ParseStage(stageCode)
	if err != nil {
		return validationError(err.Error(), "stage")
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		current, err := s.dealRepo.FindByStage(ctx, stage)
		if err != nil {
			return response.NewAppError(response.ErrCodeInternal, "Failed to fetch deals", err.Error())
		}
		if err := sameDealSet(current, req.DealIDs); err != nil {
			return err
		}
		if err := s.dealRepo.UpdatePositions(ctx, req.DealIDs); err != nil {
			return response.NewAppError(response.ErrCodeInternal, "Failed to reorder deals", err.Error())
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(ctx)
	s.publisher.Publish(EventBoardReordered, map[string]interface{}{
		"stage":   string(stage),
		"dealIds": req.DealIDs,
	})
	return nil
}

// transition loads the deal, applies the stage change, persists it with the
// version check, renumbers the destination column and appends the audit
// entry, all in one transaction. It returns the stored deal and its stage
// before the change.
func (s *pipelineServiceImpl) transition(
	ctx context.Context,
	actorID, dealID uuid.UUID,
	req domain.TransitionRequest,
	version *int,
	closing bool,
) (*domain.Deal, domain.Stage, domain.Transition, error) {
	var (
		next domain.Deal
		prev domain.Stage
		t    domain.Transition
	)

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		current, err := s.dealRepo.FindByID(ctx, dealID)
		if err != nil {
			return lookupError(err, "Deal not found", "Failed to fetch deal")
		}
		if err := checkVersion(version, current.Version); err != nil {
			return err
		}
		prev = current.Stage

		var column []uuid.UUID
		reposition := req.Position != nil || current.Stage != req.To
		if reposition {
			siblings, err := s.dealRepo.FindByStage(ctx, req.To)
			if err != nil {
				return response.NewAppError(response.ErrCodeInternal, "Failed to fetch deals", err.Error())
			}
			column = dealIDsExcept(siblings, current.ID)
			pos := len(column)
			if req.Position != nil {
				pos = clampPosition(*req.Position, len(column))
			}
			req.Position = &pos
		}

		next, t, err = domain.ApplyTransition(*current, req, s.now())
		if err != nil {
			return transitionError(err)
		}
		if !closing && unchanged(current, &next, t) {
			next = *current
			return nil
		}

		if err := s.dealRepo.Update(ctx, &next, current.Version); err != nil {
			return writeError(err, "Failed to update deal")
		}
		if reposition {
			if err := s.dealRepo.UpdatePositions(ctx, insertAt(column, *req.Position, next.ID)); err != nil {
				return response.NewAppError(response.ErrCodeInternal, "Failed to reorder deals", err.Error())
			}
		}

		if err := s.activity.Record(ctx, transitionActivity(current, &next, t, actorID, closing)); err != nil {
			return response.NewAppError(response.ErrCodeInternal, "Failed to record activity", err.Error())
		}
		return nil
	})
	if err != nil {
		return nil, "", domain.Transition{}, err
	}
	return &next, prev, t, nil
}

// afterTransition runs the post-commit side effects and builds the response
// carrying the source, target and pipeline totals
func (s *pipelineServiceImpl) afterTransition(ctx context.Context, deal *domain.Deal, t domain.Transition, source domain.Stage, event string) *dto.MoveDealResponse {
	if t.StageChanged && s.metrics != nil {
		s.metrics.RecordStageTransition(string(t.From), string(t.To))
		if t.To.IsClosed() && !t.From.IsClosed() {
			s.metrics.IncrementDealClosed(t.To.Outcome())
		}
	}
	s.cache.Invalidate(ctx)

	dealResp := toDealResponse(deal, s.now())
	resp := &dto.MoveDealResponse{Deal: &dealResp}
	if t.StageChanged {
		p := deal.Stage.DefaultProbability()
		resp.SuggestedProbability = &p
	}

	deals, err := s.dealRepo.FindForBoard(ctx, dto.BoardFilters{})
	if err != nil {
		s.logger.Warn("Failed to compute stage totals after transition",
			zap.String("deal_id", deal.ID.String()),
			zap.Error(err))
	} else {
		summary := domain.BuildBoard(deals)
		resp.Source = toStageTotals(summary.Column(source))
		resp.Target = toStageTotals(summary.Column(deal.Stage))
		resp.TotalPipelineValue = summary.TotalPipelineValue
	}

	s.publisher.Publish(event, resp)
	return resp
}

func (s *pipelineServiceImpl) recordCache(hit bool) {
	if s.metrics != nil {
		s.metrics.RecordBoardCache(hit)
	}
}

// transitionActivity describes a move or close for the audit log
func transitionActivity(prev, next *domain.Deal, t domain.Transition, actorID uuid.UUID, closing bool) ActivityEntry {
	entry := ActivityEntry{
		DealID: next.ID,
		UserID: uuidPtr(actorID),
	}

	metadata := map[string]interface{}{"position": next.Position}
	if t.ActualValueChanged && next.ActualValue.Valid {
		metadata["actualValue"] = next.ActualValue.Decimal.String()
	}
	if reason := closeReason(next); reason != "" && next.Stage.IsClosed() {
		metadata["reason"] = reason
	}
	entry.Metadata = metadata

	switch {
	case t.StageChanged:
		entry.Type = domain.ActivityStageChanged
		entry.OldValue = string(t.From)
		entry.NewValue = string(t.To)
		if closing {
			entry.Description = fmt.Sprintf("Deal closed: %s", t.To.Label())
		} else {
			entry.Description = fmt.Sprintf("Stage changed from %s to %s", t.From.Label(), t.To.Label())
		}
	case closing:
		entry.Type = domain.ActivityEdited
		entry.Description = fmt.Sprintf("Close details updated (%s)", next.Stage.Label())
	default:
		entry.Type = domain.ActivityEdited
		entry.OldValue = fmt.Sprintf("%d", prev.Position)
		entry.NewValue = fmt.Sprintf("%d", next.Position)
		entry.Description = fmt.Sprintf("Position changed within %s", next.Stage.Label())
	}
	return entry
}

// unchanged reports a same-stage move that lands on the deal's current
// position without touching its close details
func unchanged(prev, next *domain.Deal, t domain.Transition) bool {
	return !t.StageChanged &&
		!t.ActualValueChanged &&
		prev.Position == next.Position &&
		prev.CloseNotes == next.CloseNotes &&
		closeReason(prev) == closeReason(next)
}

func closeReason(d *domain.Deal) string {
	switch d.Stage {
	case domain.StageClosedLost:
		return string(d.ClosedLostReason)
	case domain.StageDeclinedToBid:
		return string(d.DeclinedReason)
	}
	return ""
}

// transitionError maps domain validation failures onto VALIDATION_ERROR with
// the offending field in Details
func transitionError(err error) error {
	var required *domain.ReasonRequiredError
	var invalid *domain.InvalidReasonError
	switch {
	case errors.As(err, &required):
		return validationError(required.Error(), "reason")
	case errors.As(err, &invalid):
		return validationError(invalid.Error(), "reason")
	case errors.Is(err, domain.ErrNegativeValue):
		return validationError("Actual value must not be negative", "actualValue")
	}
	return validationError(err.Error(), "stage")
}

func sameDealSet(current []*domain.Deal, ordered []uuid.UUID) error {
	mismatch := validationError("dealIds must list exactly the deals in the stage", "dealIds")
	if len(current) != len(ordered) {
		return mismatch
	}
	want := make(map[uuid.UUID]bool, len(current))
	for _, d := range current {
		want[d.ID] = true
	}
	for _, id := range ordered {
		if !want[id] {
			return mismatch
		}
		delete(want, id)
	}
	return nil
}

func dealIDsExcept(deals []*domain.Deal, skip uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(deals))
	for _, d := range deals {
		if d.ID != skip {
			out = append(out, d.ID)
		}
	}
	return out
}

// clampPosition bounds a requested index to [0, n]
func clampPosition(pos, n int) int {
	if pos < 0 {
		return 0
	}
	if pos > n {
		return n
	}
	return pos
}

// insertAt returns a copy of ids with id inserted at index pos
func insertAt(ids []uuid.UUID, pos int, id uuid.UUID) []uuid.UUID {
	pos = clampPosition(pos, len(ids))
	out := make([]uuid.UUID, 0, len(ids)+1)
	out = append(out, ids[:pos]...)
	out = append(out, id)
	return append(out, ids[pos:]...)
}
