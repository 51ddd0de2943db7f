package domain

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boardDeal(stage Stage, value int64, probability int) *Deal {
	return &Deal{
		Stage:          stage,
		EstimatedValue: decimal.NewNullDecimal(decimal.NewFromInt(value)),
		Probability:    probability,
	}
}

func TestBuildBoard_Empty(t *testing.T) {
	board := BuildBoard(nil)

	require.Len(t, board.Stages, 9)
	for i, col := range board.Stages {
		assert.Equal(t, Stages()[i], col.Stage)
		assert.Zero(t, col.Count)
		assert.True(t, col.TotalValue.IsZero())
		assert.NotNil(t, col.Deals)
	}
	assert.True(t, board.TotalPipelineValue.IsZero())
	assert.Zero(t, board.TotalDeals)
}

func TestBuildBoard_ExcludesClosedFromPipeline(t *testing.T) {
	nullValue := &Deal{Stage: StageEngaged, Probability: 20}
	deals := []*Deal{
		boardDeal(StageNewRequest, 1000, 10),
		boardDeal(StageNegotiation, 500, 75),
		boardDeal(StageClosedWon, 9000, 100),
		boardDeal(StageClosedLost, 300, 0),
		nullValue,
	}

	board := BuildBoard(deals)

	assert.Equal(t, 5, board.TotalDeals)
	assert.Equal(t, "1500", board.TotalPipelineValue.String())
	assert.Equal(t, "475", board.WeightedPipelineValue.String())

	won := board.Column(StageClosedWon)
	assert.Equal(t, 1, won.Count)
	assert.Equal(t, "9000", won.TotalValue.String())

	engaged := board.Column(StageEngaged)
	assert.Equal(t, 1, engaged.Count)
	assert.True(t, engaged.TotalValue.IsZero())
}

func TestBuildBoard_MoveScenario(t *testing.T) {
	d := boardDeal(StageNewRequest, 1000, 10)
	other := boardDeal(StageNewRequest, 50, 10)
	before := BuildBoard([]*Deal{d, other})

	d.Stage = StageNegotiation
	after := BuildBoard([]*Deal{d, other})

	assert.Equal(t, before.Column(StageNewRequest).Count-1, after.Column(StageNewRequest).Count)
	assert.Equal(t, before.Column(StageNegotiation).Count+1, after.Column(StageNegotiation).Count)
	assert.True(t, after.Column(StageNegotiation).TotalValue.Sub(before.Column(StageNegotiation).TotalValue).Equal(decimal.NewFromInt(1000)))
	assert.True(t, before.TotalPipelineValue.Equal(after.TotalPipelineValue))
}

func TestBuildBoard_IgnoresUnknownStage(t *testing.T) {
	board := BuildBoard([]*Deal{boardDeal(Stage("ARCHIVED"), 10, 10)})
	assert.Zero(t, board.TotalDeals)
	assert.Zero(t, board.Column(Stage("ARCHIVED")).Count)
}

func TestBuildBoard_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	genDeals := gen.SliceOf(gen.Struct(reflectDealSeed, map[string]gopter.Gen{
		"StageIdx": gen.IntRange(0, 8),
		"Value":    gen.Int64Range(0, 1_000_000),
		"HasValue": gen.Bool(),
	}))

	properties.Property("column counts sum to the number of deals", prop.ForAll(
		func(seeds []dealSeed) bool {
			deals := seedsToDeals(seeds)
			board := BuildBoard(deals)
			sum := 0
			for _, col := range board.Stages {
				sum += col.Count
			}
			return sum == len(deals) && board.TotalDeals == len(deals)
		},
		genDeals,
	))

	properties.Property("pipeline value equals the sum of active estimates", prop.ForAll(
		func(seeds []dealSeed) bool {
			deals := seedsToDeals(seeds)
			want := decimal.Zero
			for _, d := range deals {
				if d.Stage.IsActive() {
					want = want.Add(d.EstimatedOrZero())
				}
			}
			return BuildBoard(deals).TotalPipelineValue.Equal(want)
		},
		genDeals,
	))

	properties.Property("column values match a per-stage scan", prop.ForAll(
		func(seeds []dealSeed) bool {
			deals := seedsToDeals(seeds)
			board := BuildBoard(deals)
			for _, s := range Stages() {
				count := 0
				total := decimal.Zero
				for _, d := range deals {
					if d.Stage == s {
						count++
						total = total.Add(d.EstimatedOrZero())
					}
				}
				col := board.Column(s)
				if col.Count != count || !col.TotalValue.Equal(total) {
					return false
				}
			}
			return true
		},
		genDeals,
	))

	properties.TestingRun(t)
}

type dealSeed struct {
	StageIdx int
	Value    int64
	HasValue bool
}

var reflectDealSeed = reflect.TypeOf(dealSeed{})

func seedsToDeals(seeds []dealSeed) []*Deal {
	deals := make([]*Deal, 0, len(seeds))
	for _, s := range seeds {
		stage := Stages()[s.StageIdx]
		d := &Deal{Stage: stage, Probability: stage.DefaultProbability()}
		if s.HasValue {
			d.EstimatedValue = decimal.NewNullDecimal(decimal.NewFromInt(s.Value))
		}
		deals = append(deals, d)
	}
	return deals
}
