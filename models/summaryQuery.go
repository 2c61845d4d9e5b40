package models

import (
	"context"
	"errors"

	"github.com/tesouraria/church_backend/config"
	"github.com/tesouraria/church_backend/utils"
	"gorm.io/gorm"
)

type SummaryFilter struct {
	CongregationIds  string `form:"congregationIds"`
	StartSummaryDate string `form:"startSummaryDate"`
	EndSummaryDate   string `form:"endSummaryDate"`
	Timezone         string `form:"timezone"`
}

func preloadSummaryLaunches(db *gorm.DB) *gorm.DB {
	return db.Order("date, id")
}

// ListSummaries returns the summaries of the given congregations, newest period first.
func ListSummaries(ctx context.Context, caller *Principal, filter *SummaryFilter) ([]CongregationSummary, error) {
	if caller == nil {
		return nil, utils.UnauthenticatedError(utils.MsgUnauthenticated)
	}
	if !caller.Capabilities.ListSummary {
		return nil, utils.UnauthorizedError(utils.MsgNoPermission)
	}
	congregationIds, err := utils.ParseIntList(filter.CongregationIds)
	if err != nil || len(congregationIds) == 0 {
		return nil, utils.ValidationError(utils.MsgMissingFields)
	}
	loc, err := utils.LoadLocation(filter.Timezone, config.DefaultTimezone())
	if err != nil {
		return nil, utils.ValidationError(utils.MsgInvalidTimezone)
	}

	db := config.GetDB()
	if err := EnsureCongregationAccess(ctx, db, caller, congregationIds...); err != nil {
		return nil, err
	}

	dbCtx := db.WithContext(ctx).
		Preload("Launches", preloadSummaryLaunches).
		Where("congregation_id IN ?", utils.UniqueSlice(congregationIds))
	if filter.StartSummaryDate != "" {
		start, err := utils.ParseLocalDate(filter.StartSummaryDate, loc)
		if err != nil {
			return nil, utils.ValidationError(utils.MsgInvalidDate)
		}
		dbCtx = dbCtx.Where("start_date >= ?", utils.StartOfDayUTC(start, loc))
	}
	if filter.EndSummaryDate != "" {
		end, err := utils.ParseLocalDate(filter.EndSummaryDate, loc)
		if err != nil {
			return nil, utils.ValidationError(utils.MsgInvalidDate)
		}
		dbCtx = dbCtx.Where("start_date <= ?", utils.EndOfDayUTC(end, loc))
	}

	summaries := []CongregationSummary{}
	if err := dbCtx.Order("start_date DESC, id DESC").Find(&summaries).Error; err != nil {
		return nil, utils.UnexpectedError(err)
	}
	return summaries, nil
}

func GetSummary(ctx context.Context, caller *Principal, id int) (*CongregationSummary, error) {
	if caller == nil {
		return nil, utils.UnauthenticatedError(utils.MsgUnauthenticated)
	}
	if !caller.Capabilities.ListSummary {
		return nil, utils.UnauthorizedError(utils.MsgNoPermission)
	}

	db := config.GetDB()
	var summary CongregationSummary
	if err := db.WithContext(ctx).Preload("Launches", preloadSummaryLaunches).First(&summary, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError(utils.MsgSummaryNotFound)
		}
		return nil, utils.UnexpectedError(err)
	}
	if err := EnsureCongregationAccess(ctx, db, caller, summary.CongregationId); err != nil {
		return nil, err
	}
	return &summary, nil
}
