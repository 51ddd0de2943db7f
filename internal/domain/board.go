package domain

import "github.com/shopspring/decimal"

// StageSummary is one column of the board
type StageSummary struct {
	Stage         Stage
	Deals         []*Deal
	Count         int
	TotalValue    decimal.Decimal
	WeightedValue decimal.Decimal
}

// BoardSummary groups a set of deals by stage. Stages always holds all nine
// stages in board order.
type BoardSummary struct {
	Stages                []StageSummary
	TotalPipelineValue    decimal.Decimal
	WeightedPipelineValue decimal.Decimal
	TotalDeals            int
}

// BuildBoard groups deals by stage in a single pass. Missing estimates count
// as zero, and pipeline totals include active stages only. Deals keep their
// relative input order within a column. Deals with an unknown stage are
// ignored.
func BuildBoard(deals []*Deal) BoardSummary {
	board := BoardSummary{
		Stages:                make([]StageSummary, len(stageOrder)),
		TotalPipelineValue:    decimal.Zero,
		WeightedPipelineValue: decimal.Zero,
	}
	for i, s := range stageOrder {
		board.Stages[i] = StageSummary{
			Stage:         s,
			Deals:         []*Deal{},
			TotalValue:    decimal.Zero,
			WeightedValue: decimal.Zero,
		}
	}

	for _, d := range deals {
		idx := d.Stage.Index()
		if idx < 0 {
			continue
		}
		col := &board.Stages[idx]
		value := d.EstimatedOrZero()
		weighted := d.WeightedValue()

		col.Deals = append(col.Deals, d)
		col.Count++
		col.TotalValue = col.TotalValue.Add(value)
		col.WeightedValue = col.WeightedValue.Add(weighted)
		board.TotalDeals++

		if d.Stage.IsActive() {
			board.TotalPipelineValue = board.TotalPipelineValue.Add(value)
			board.WeightedPipelineValue = board.WeightedPipelineValue.Add(weighted)
		}
	}
	return board
}

// Column returns the summary of one stage
func (b BoardSummary) Column(s Stage) StageSummary {
	if idx := s.Index(); idx >= 0 && idx < len(b.Stages) {
		return b.Stages[idx]
	}
	return StageSummary{Stage: s, TotalValue: decimal.Zero, WeightedValue: decimal.Zero}
}
