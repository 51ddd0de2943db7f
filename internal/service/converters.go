package service

import (
	"encoding/json"
	"time"

	"crm-pipeline-api/internal/domain"
	"crm-pipeline-api/internal/dto"
	"crm-pipeline-api/internal/repository"
)

func toDealResponse(d *domain.Deal, now time.Time) dto.DealResponse {
	resp := dto.DealResponse{
		ID:                d.ID,
		Title:             d.Title,
		Description:       d.Description,
		ClientID:          d.ClientID,
		Stage:             string(d.Stage),
		StageLabel:        d.Stage.Label(),
		StageChangedAt:    d.StageChangedAt,
		DaysInStage:       d.DaysInStage(now),
		ClosedLostReason:  string(d.ClosedLostReason),
		DeclinedReason:    string(d.DeclinedReason),
		CloseNotes:        d.CloseNotes,
		EstimatedValue:    decimalPtr(d.EstimatedValue),
		ActualValue:       decimalPtr(d.ActualValue),
		WeightedValue:     d.WeightedValue(),
		Probability:       d.Probability,
		ExpectedCloseDate: formatDate(d.ExpectedCloseDate),
		ActualCloseDate:   formatDate(d.ActualCloseDate),
		OwnerID:           d.OwnerID,
		EstimatorID:       d.EstimatorID,
		SiteOfficerID:     d.SiteOfficerID,
		ProjectManagerID:  d.ProjectManagerID,
		Position:          d.Position,
		IsActive:          d.IsActive(),
		IsWon:             d.IsWon(),
		Version:           d.Version,
		CreatedByID:       d.CreatedByID,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
	if d.Client != nil {
		resp.ClientName = d.Client.DisplayName()
	}
	return resp
}

func toDealResponses(deals []*domain.Deal, now time.Time) []dto.DealResponse {
	out := make([]dto.DealResponse, 0, len(deals))
	for _, d := range deals {
		out = append(out, toDealResponse(d, now))
	}
	return out
}

func toBoardResponse(summary domain.BoardSummary, now time.Time) *dto.BoardResponse {
	resp := &dto.BoardResponse{
		Stages:                make([]dto.StageColumnResponse, 0, len(summary.Stages)),
		TotalPipelineValue:    summary.TotalPipelineValue,
		WeightedPipelineValue: summary.WeightedPipelineValue,
		TotalDeals:            summary.TotalDeals,
	}
	for _, col := range summary.Stages {
		resp.Stages = append(resp.Stages, dto.StageColumnResponse{
			Stage:         string(col.Stage),
			Label:         col.Stage.Label(),
			IsClosed:      col.Stage.IsClosed(),
			Count:         col.Count,
			TotalValue:    col.TotalValue,
			WeightedValue: col.WeightedValue,
			Deals:         toDealResponses(col.Deals, now),
		})
	}
	return resp
}

func toStageTotals(col domain.StageSummary) *dto.StageTotals {
	return &dto.StageTotals{
		Stage: string(col.Stage),
		Count: col.Count,
		Value: col.TotalValue,
	}
}

func toActivityResponse(a *domain.DealActivity) dto.ActivityResponse {
	resp := dto.ActivityResponse{
		ID:           a.ID,
		DealID:       a.DealID,
		ActivityType: string(a.ActivityType),
		Label:        a.ActivityType.Label(),
		Description:  a.Description,
		OldValue:     a.OldValue,
		NewValue:     a.NewValue,
		UserID:       a.UserID,
		CreatedAt:    a.CreatedAt,
	}
	if len(a.Metadata) > 0 {
		resp.Metadata = json.RawMessage(a.Metadata)
	}
	return resp
}

func toActivityResponses(activities []*domain.DealActivity) []dto.ActivityResponse {
	out := make([]dto.ActivityResponse, 0, len(activities))
	for _, a := range activities {
		out = append(out, toActivityResponse(a))
	}
	return out
}

func toFileResponse(f *domain.DealFile) dto.DealFileResponse {
	return dto.DealFileResponse{
		ID:                f.ID,
		DealID:            f.DealID,
		OriginalFilename:  f.OriginalFilename,
		FileSize:          f.FileSize,
		FormattedSize:     f.FormattedSize(),
		MimeType:          f.MimeType,
		FileType:          string(f.FileType),
		Description:       f.Description,
		Version:           f.Version,
		IsCurrent:         f.IsCurrent,
		IsImage:           f.IsImage(),
		IsPDF:             f.IsPDF(),
		PreviousVersionID: f.PreviousVersionID,
		UploadedByID:      f.UploadedByID,
		UploadedAt:        f.UploadedAt,
	}
}

func toFileResponses(files []*domain.DealFile) []dto.DealFileResponse {
	out := make([]dto.DealFileResponse, 0, len(files))
	for _, f := range files {
		out = append(out, toFileResponse(f))
	}
	return out
}

func toScheduleResponse(s *domain.DealSchedule) dto.ScheduleResponse {
	resp := dto.ScheduleResponse{
		ID:                 s.ID,
		DealID:             s.DealID,
		Title:              s.Title,
		Description:        s.Description,
		EventType:          string(s.EventType),
		Status:             string(s.Status),
		StatusLabel:        s.Status.Label(),
		ScheduledDate:      time.Time(s.ScheduledDate).Format(dto.DateLayout),
		DurationHours:      decimalPtr(s.DurationHours),
		AssignedToID:       s.AssignedToID,
		LocationNotes:      s.LocationNotes,
		AccessInstructions: s.AccessInstructions,
		EquipmentNeeded:    s.EquipmentNeeded,
		IsRecurring:        s.IsRecurring,
		RecurrencePattern:  string(s.RecurrencePattern),
		RecurrenceEndDate:  formatDate(s.RecurrenceEndDate),
		ParentScheduleID:   s.ParentScheduleID,
		CompletedAt:        s.CompletedAt,
		CompletionNotes:    s.CompletionNotes,
		Position:           s.Position,
		Version:            s.Version,
		CreatedByID:        s.CreatedByID,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
	if s.ScheduledTime != nil {
		t := formatClock(*s.ScheduledTime)
		resp.ScheduledTime = &t
	}
	return resp
}

func toScheduleResponses(schedules []*domain.DealSchedule) []dto.ScheduleResponse {
	out := make([]dto.ScheduleResponse, 0, len(schedules))
	for _, s := range schedules {
		out = append(out, toScheduleResponse(s))
	}
	return out
}

func toCommentResponse(c *domain.DealComment) dto.CommentResponse {
	return dto.CommentResponse{
		CommentID: c.ID,
		DealID:    c.DealID,
		ParentID:  c.ParentID,
		AuthorID:  c.AuthorID,
		Content:   c.Content,
		IsEdited:  c.IsEdited,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func toCommentThreads(nodes []*domain.CommentNode) []*dto.CommentThreadResponse {
	out := make([]*dto.CommentThreadResponse, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &dto.CommentThreadResponse{
			CommentResponse: toCommentResponse(n.Comment),
			Replies:         toCommentThreads(n.Replies),
		})
	}
	return out
}

func toClientResponse(c *domain.Client, stats repository.ClientDealStats) dto.ClientResponse {
	return dto.ClientResponse{
		ID:           c.ID,
		CompanyName:  c.CompanyName,
		DisplayName:  c.DisplayName(),
		Industry:     c.Industry,
		Website:      c.Website,
		ContactName:  c.ContactName,
		ContactEmail: c.ContactEmail,
		ContactPhone: c.ContactPhone,
		ContactTitle: c.ContactTitle,
		AddressLine1: c.AddressLine1,
		AddressLine2: c.AddressLine2,
		City:         c.City,
		State:        c.State,
		PostalCode:   c.PostalCode,
		Country:      c.Country,
		FullAddress:  c.FullAddress(),
		Status:       string(c.Status),
		Notes:        c.Notes,
		DealCount:    stats.Count,
		DealValue:    stats.Value,
		CreatedByID:  c.CreatedByID,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}
