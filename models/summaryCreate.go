package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/tesouraria/church_backend/config"
	"github.com/tesouraria/church_backend/utils"
	"go.opentelemetry.io/otel/attribute"
)

const summaryLockType = "summary"

type NewCongregationSummary struct {
	CongregationId int    `json:"congregationId" validate:"required,gt=0"`
	StartDate      string `json:"startDate" validate:"required"`
	EndDate        string `json:"endDate" validate:"required"`
	SummaryType    string `json:"summaryType" validate:"required"`
	Timezone       string `json:"timezone"`
}

// SummaryPeriod holds the UTC boundaries of a summary.
type SummaryPeriod struct {
	Start time.Time
	End   time.Time
}

// ComputeSummaryPeriod converts local start and end dates into UTC boundaries.
// End is end-of-day plus endShift. Ranges reaching past the end of today (in loc) are rejected.
func ComputeSummaryPeriod(startDate, endDate string, loc *time.Location, now time.Time, endShift time.Duration) (SummaryPeriod, error) {
	start, err := utils.ParseLocalDate(startDate, loc)
	if err != nil {
		return SummaryPeriod{}, utils.ValidationError(utils.MsgInvalidDate)
	}
	end, err := utils.ParseLocalDate(endDate, loc)
	if err != nil {
		return SummaryPeriod{}, utils.ValidationError(utils.MsgInvalidDate)
	}
	if start.After(end) {
		return SummaryPeriod{}, utils.ValidationError(utils.MsgInvalidDateRange)
	}

	period := SummaryPeriod{
		Start: utils.StartOfDayUTC(start, loc),
		End:   utils.EndOfDayUTC(end, loc).Add(endShift),
	}
	endOfToday := utils.EndOfDayUTC(now, loc)
	if period.Start.After(endOfToday) || period.End.After(endOfToday) {
		return SummaryPeriod{}, utils.ValidationError(utils.MsgFutureSummary)
	}
	return period, nil
}

// SummaryTotals are the per-category sums of a set of launches.
type SummaryTotals struct {
	Tithe              decimal.Decimal
	Offer              decimal.Decimal
	Votes              decimal.Decimal
	Ebd                decimal.Decimal
	Campaign           decimal.Decimal
	Mission            decimal.Decimal
	Circle             decimal.Decimal
	InstallmentReviver decimal.Decimal
	Entry              decimal.Decimal
	Exit               decimal.Decimal
	Total              decimal.Decimal
	Count              int
}

func SumLaunches(launches []Launch) SummaryTotals {
	var t SummaryTotals
	for _, l := range launches {
		switch l.Type {
		case LaunchTypeTithe:
			t.Tithe = t.Tithe.Add(l.Value)
		case LaunchTypeServiceOffer:
			t.Offer = t.Offer.Add(l.Value)
		case LaunchTypeVote:
			t.Votes = t.Votes.Add(l.Value)
		case LaunchTypeEbd:
			t.Ebd = t.Ebd.Add(l.Value)
		case LaunchTypeCampaign:
			t.Campaign = t.Campaign.Add(l.Value)
		case LaunchTypeMission:
			t.Mission = t.Mission.Add(l.Value)
		case LaunchTypeCircle:
			t.Circle = t.Circle.Add(l.Value)
		case LaunchTypeInstallmentReviver:
			t.InstallmentReviver = t.InstallmentReviver.Add(l.Value)
		case LaunchTypeExit:
			t.Exit = t.Exit.Add(l.Value)
		}
		if l.Type.IsEntry() {
			t.Entry = t.Entry.Add(l.Value)
		}
		t.Count++
	}
	t.Total = t.Entry.Sub(t.Exit)
	return t
}

func (t SummaryTotals) apply(s *CongregationSummary) {
	s.TitheValue = t.Tithe
	s.OfferValue = t.Offer
	s.VotesValue = t.Votes
	s.EbdValue = t.Ebd
	s.CampaignValue = t.Campaign
	s.MissionValue = t.Mission
	s.CircleValue = t.Circle
	s.InstallmentReviverValue = t.InstallmentReviver
	s.EntryTotal = t.Entry
	s.ExitTotal = t.Exit
	s.TotalValue = t.Total
	s.LaunchCount = t.Count
}

// CreateSummary aggregates the eligible launches of a congregation and period into a new summary
// and links them to it, atomically.
func CreateSummary(ctx context.Context, caller *Principal, input *NewCongregationSummary) (*SummaryCreateResult, error) {
	ctx, span := tracer.Start(ctx, "CreateSummary")
	defer span.End()

	if caller == nil {
		return nil, utils.UnauthenticatedError(utils.MsgUnauthenticated)
	}
	if !caller.Capabilities.CreateSummary {
		return nil, utils.UnauthorizedError(utils.MsgNoPermission)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("congregation_id", input.CongregationId))

	summaryType, err := ParseSummaryType(input.SummaryType)
	if err != nil {
		return nil, utils.ValidationError(utils.MsgInvalidSummaryType)
	}
	loc, err := utils.LoadLocation(input.Timezone, config.DefaultTimezone())
	if err != nil {
		return nil, utils.ValidationError(utils.MsgInvalidTimezone)
	}
	period, err := ComputeSummaryPeriod(input.StartDate, input.EndDate, loc, time.Now(), config.SummaryEndShift())
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := EnsureCongregationAccess(ctx, db, caller, input.CongregationId); err != nil {
		return nil, err
	}

	release, err := utils.CongregationLock(ctx, summaryLockType, input.CongregationId, 30*time.Second, "summaryCreate.go", "CreateSummary")
	defer release()
	if errors.Is(err, utils.ErrLockNotObtained) {
		return nil, utils.ValidationError(utils.MsgSummaryBusy)
	} else if err != nil {
		// redis trouble only downgrades to the transactional duplicate check
		config.GetLogger().WithFields(logrus.Fields{
			"field":           "CreateSummary",
			"congregation_id": input.CongregationId,
		}).Warn("proceeding without summary lock: " + err.Error())
	}

	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, utils.UnexpectedError(tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	defer func() { _ = tx.Rollback().Error }()

	launches := []Launch{}
	if err := tx.
		Where("congregation_id = ? AND date BETWEEN ? AND ?", input.CongregationId, period.Start, period.End).
		Where("type IN ? AND status IN ? AND summary_id IS NULL", summaryType.LaunchTypes(), summarizableStatuses).
		Order("date, id").
		Find(&launches).Error; err != nil {
		return nil, utils.UnexpectedError(err)
	}
	if len(launches) == 0 {
		return nil, utils.ValidationError(utils.MsgNoLaunchesFound)
	}

	var duplicates int64
	if err := tx.Model(&CongregationSummary{}).
		Where("congregation_id = ? AND start_date = ? AND end_date = ?", input.CongregationId, period.Start, period.End).
		Count(&duplicates).Error; err != nil {
		return nil, utils.UnexpectedError(err)
	}
	if duplicates > 0 {
		return nil, utils.ValidationError(utils.MsgDuplicateSummary)
	}

	summary := CongregationSummary{
		CongregationId: input.CongregationId,
		StartDate:      period.Start,
		EndDate:        period.End,
		SummaryType:    summaryType,
		Status:         SummaryStatusPending,
		CreatedBy:      caller.ActorName(),
	}
	SumLaunches(launches).apply(&summary)
	if err := tx.Create(&summary).Error; err != nil {
		return nil, utils.UnexpectedError(err)
	}

	ids := make([]int, len(launches))
	for i := range launches {
		ids[i] = launches[i].ID
	}
	result := tx.Model(&Launch{}).
		Where("id IN ? AND status IN ? AND summary_id IS NULL", ids, summarizableStatuses).
		Update("summary_id", summary.ID)
	if result.Error != nil {
		return nil, utils.UnexpectedError(result.Error)
	}
	if result.RowsAffected != int64(len(ids)) {
		return nil, utils.ValidationError(utils.MsgLaunchesChanged)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, utils.UnexpectedError(err)
	}

	summaryId := summary.ID
	for i := range launches {
		launches[i].SummaryId = &summaryId
	}
	span.SetAttributes(attribute.Int("summary_id", summary.ID), attribute.Int("launch_count", len(launches)))
	return newSummaryCreateResult(&summary, launches), nil
}
