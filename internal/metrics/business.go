package metrics

import "strings"

// IncrementDealCreated increments deal creation counter
func (m *Metrics) IncrementDealCreated() {
	m.safeExecute("IncrementDealCreated", func() {
		m.DealCreatedTotal.Inc()
	})
}

// RecordStageTransition counts a deal moving from one stage to another
func (m *Metrics) RecordStageTransition(from, to string) {
	m.safeExecute("RecordStageTransition", func() {
		m.StageTransitionsTotal.WithLabelValues(from, to).Inc()
	})
}

// IncrementDealClosed counts a deal entering a closed stage by outcome
// (won, lost, declined)
func (m *Metrics) IncrementDealClosed(outcome string) {
	m.safeExecute("IncrementDealClosed", func() {
		m.DealClosedTotal.WithLabelValues(outcome).Inc()
	})
}

// IncrementFileUploaded increments file upload counter
func (m *Metrics) IncrementFileUploaded() {
	m.safeExecute("IncrementFileUploaded", func() {
		m.FileUploadedTotal.Inc()
	})
}

// AddScheduleInstances counts schedule instances created by the recurrence job
func (m *Metrics) AddScheduleInstances(n int) {
	if n <= 0 {
		return
	}
	m.safeExecute("AddScheduleInstances", func() {
		m.ScheduleInstancesCreated.Add(float64(n))
	})
}

// RecordBoardCache counts a board cache lookup
func (m *Metrics) RecordBoardCache(hit bool) {
	m.safeExecute("RecordBoardCache", func() {
		result := "miss"
		if hit {
			result = "hit"
		}
		m.BoardCacheRequestsTotal.WithLabelValues(result).Inc()
	})
}

// SetDealsByStage sets the deals gauge of one stage
func (m *Metrics) SetDealsByStage(stage string, count int) {
	m.safeExecute("SetDealsByStage", func() {
		m.DealsTotal.WithLabelValues(strings.ToLower(stage)).Set(float64(count))
	})
}

// SetPipelineValues sets the active and weighted pipeline value gauges
func (m *Metrics) SetPipelineValues(active, weighted float64) {
	m.safeExecute("SetPipelineValues", func() {
		m.ActivePipelineValue.Set(active)
		m.WeightedPipelineValue.Set(weighted)
	})
}
