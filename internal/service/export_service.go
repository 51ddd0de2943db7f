package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"crm-pipeline-api/internal/domain"
	"crm-pipeline-api/internal/dto"
	"crm-pipeline-api/internal/repository"
	"crm-pipeline-api/internal/response"
)

const dealSheet = "Deals"

var dealExportHeader = []string{
	"Title", "Client", "Stage", "Estimated Value", "Actual Value", "Probability",
	"Weighted Value", "Expected Close", "Actual Close", "Close Reason",
	"Owner ID", "Days In Stage", "Created",
}

// ExportService renders deal lists as spreadsheets
type ExportService interface {
	// ExportDeals returns the xlsx workbook and a download filename
	ExportDeals(ctx context.Context, filters *dto.DealFilters) ([]byte, string, error)
}

type exportServiceImpl struct {
	dealRepo repository.DealRepository
	logger   *zap.Logger
	now      func() time.Time
}

// NewExportService creates a new instance of ExportService
func NewExportService(dealRepo repository.DealRepository, logger *zap.Logger) ExportService {
	return &exportServiceImpl{
		dealRepo: dealRepo,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *exportServiceImpl) ExportDeals(ctx context.Context, filters *dto.DealFilters) ([]byte, string, error) {
	filters.Normalize()
	if filters.Stage != "" && !domain.Stage(filters.Stage).Valid() {
		return nil, "", validationError(fmt.Sprintf("invalid stage %q", filters.Stage), "stage")
	}

	deals, err := s.dealRepo.ListAll(ctx, filters)
	if err != nil {
		return nil, "", response.NewAppError(response.ErrCodeInternal, "Failed to fetch deals", err.Error())
	}

	now := s.now()
	data, err := renderDealWorkbook(deals, now)
	if err != nil {
		s.logger.Error("Failed to render deal export", zap.Error(err))
		return nil, "", response.NewAppError(response.ErrCodeInternal, "Failed to export deals", err.Error())
	}

	s.logger.Info("Deals exported", zap.Int("count", len(deals)))
	return data, fmt.Sprintf("deals_%s.xlsx", now.Format("20060102")), nil
}

func renderDealWorkbook(deals []*domain.Deal, now time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(dealSheet)
	if err != nil {
		return nil, err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)

	for c, v := range dealExportHeader {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		if err := f.SetCellValue(dealSheet, cell, v); err != nil {
			return nil, err
		}
	}

	for r, d := range deals {
		for c, v := range dealRow(d, now) {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(dealSheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(dealExportHeader))
	_ = f.SetColWidth(dealSheet, "A", "B", 30)
	_ = f.SetColWidth(dealSheet, "C", lastCol, 16)

	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#1F2937"}, Pattern: 1},
	})
	if err == nil {
		_ = f.SetCellStyle(dealSheet, "A1", lastCol+"1", style)
	}
	_ = f.SetPanes(dealSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func dealRow(d *domain.Deal, now time.Time) []interface{} {
	clientName := ""
	if d.Client != nil {
		clientName = d.Client.DisplayName()
	}
	return []interface{}{
		d.Title,
		clientName,
		d.Stage.Label(),
		nullableAmount(d.EstimatedValue.Valid, d.EstimatedValue.Decimal.InexactFloat64()),
		nullableAmount(d.ActualValue.Valid, d.ActualValue.Decimal.InexactFloat64()),
		d.Probability,
		d.WeightedValue().InexactFloat64(),
		derefDate(formatDate(d.ExpectedCloseDate)),
		derefDate(formatDate(d.ActualCloseDate)),
		closeReasonLabel(d),
		d.OwnerID.String(),
		d.DaysInStage(now),
		d.CreatedAt.Format(dto.DateLayout),
	}
}

func nullableAmount(valid bool, v float64) interface{} {
	if !valid {
		return ""
	}
	return v
}

func derefDate(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func closeReasonLabel(d *domain.Deal) string {
	switch d.Stage {
	case domain.StageClosedLost:
		return d.ClosedLostReason.Label()
	case domain.StageDeclinedToBid:
		return d.DeclinedReason.Label()
	}
	return ""
}
