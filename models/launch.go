package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tesouraria/church_backend/config"
	"github.com/tesouraria/church_backend/utils"
	"gorm.io/gorm"
)

type Launch struct {
	ID                   int             `gorm:"primary_key" json:"id"`
	CongregationId       int             `gorm:"index:idx_launch_congregation_date;not null" json:"congregationId"`
	Type                 LaunchType      `gorm:"type:enum('TITHE','SERVICE_OFFER','VOTE','EBD','CAMPAIGN','MISSION','CIRCLE','INSTALLMENT_REVIVER','EXIT');not null" json:"type"`
	Value                decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"value"`
	Date                 time.Time       `gorm:"type:datetime(3);index:idx_launch_congregation_date;not null" json:"date"`
	Description          string          `gorm:"size:255" json:"description"`
	TalonNumber          string          `gorm:"size:50" json:"talonNumber"`
	Status               LaunchStatus    `gorm:"type:enum('NORMAL','APPROVED','IMPORTED','CANCELED','EXPORTED');default:NORMAL;not null" json:"status"`
	SummaryId            *int            `gorm:"index" json:"summaryId"`
	TreasuryApprovedBy   *string         `gorm:"size:100" json:"treasuryApprovedBy"`
	TreasuryApprovedAt   *time.Time      `json:"treasuryApprovedAt"`
	AccountantApprovedBy *string         `gorm:"size:100" json:"accountantApprovedBy"`
	AccountantApprovedAt *time.Time      `json:"accountantApprovedAt"`
	DirectorApprovedBy   *string         `gorm:"size:100" json:"directorApprovedBy"`
	DirectorApprovedAt   *time.Time      `json:"directorApprovedAt"`
	ApprovedVia          *ApprovedVia    `gorm:"size:20" json:"approvedVia"`
	CreatedBy            string          `gorm:"size:100" json:"createdBy"`
	CreatedAt            time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt            time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

// MarshalJSON renders every instant the way summaries and periods are rendered.
func (l Launch) MarshalJSON() ([]byte, error) {
	type launchJSON Launch
	return json.Marshal(struct {
		launchJSON
		Date                 string  `json:"date"`
		TreasuryApprovedAt   *string `json:"treasuryApprovedAt"`
		AccountantApprovedAt *string `json:"accountantApprovedAt"`
		DirectorApprovedAt   *string `json:"directorApprovedAt"`
		CreatedAt            string  `json:"createdAt"`
		UpdatedAt            string  `json:"updatedAt"`
	}{
		launchJSON:           launchJSON(l),
		Date:                 utils.FormatISO(l.Date),
		TreasuryApprovedAt:   utils.FormatISOPtr(l.TreasuryApprovedAt),
		AccountantApprovedAt: utils.FormatISOPtr(l.AccountantApprovedAt),
		DirectorApprovedAt:   utils.FormatISOPtr(l.DirectorApprovedAt),
		CreatedAt:            utils.FormatISO(l.CreatedAt),
		UpdatedAt:            utils.FormatISO(l.UpdatedAt),
	})
}

// IsLocked reports whether the launch has been aggregated into a summary.
func (l *Launch) IsLocked() bool {
	return l.SummaryId != nil
}

type NewLaunch struct {
	CongregationId int             `json:"congregationId" validate:"required,gt=0"`
	Type           LaunchType      `json:"type" validate:"required"`
	Value          decimal.Decimal `json:"value"`
	Date           string          `json:"date" validate:"required"`
	Timezone       string          `json:"timezone"`
	Description    string          `json:"description" validate:"max=255"`
	TalonNumber    string          `json:"talonNumber" validate:"max=50"`
}

type LaunchFilter struct {
	CongregationIds string `form:"congregationIds"`
	StartDate       string `form:"startDate"`
	EndDate         string `form:"endDate"`
	Timezone        string `form:"timezone"`
	Status          string `form:"status"`
	Type            string `form:"type"`
}

func (input *NewLaunch) validate() error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	launchType, err := ParseLaunchType(string(input.Type))
	if err != nil {
		return utils.ValidationError(utils.MsgInvalidLaunchType)
	}
	input.Type = launchType
	if !input.Value.IsPositive() {
		return utils.ValidationError(utils.MsgInvalidLaunchValue)
	}
	return nil
}

func CreateLaunch(ctx context.Context, caller *Principal, input *NewLaunch) (*Launch, error) {
	if caller == nil {
		return nil, utils.UnauthenticatedError(utils.MsgUnauthenticated)
	}
	if !caller.Capabilities.CreateLaunch {
		return nil, utils.UnauthorizedError(utils.MsgNoPermission)
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	loc, err := utils.LoadLocation(input.Timezone, config.DefaultTimezone())
	if err != nil {
		return nil, utils.ValidationError(utils.MsgInvalidTimezone)
	}
	localDate, err := utils.ParseLocalDate(input.Date, loc)
	if err != nil {
		return nil, utils.ValidationError(utils.MsgInvalidDate)
	}

	db := config.GetDB()
	if err := EnsureCongregationAccess(ctx, db, caller, input.CongregationId); err != nil {
		return nil, err
	}

	launch := Launch{
		CongregationId: input.CongregationId,
		Type:           input.Type,
		Value:          input.Value.Round(2),
		Date:           utils.StartOfDayUTC(localDate, loc),
		Description:    input.Description,
		TalonNumber:    input.TalonNumber,
		Status:         LaunchStatusNormal,
		CreatedBy:      caller.ActorName(),
	}
	if err := db.WithContext(ctx).Create(&launch).Error; err != nil {
		return nil, utils.UnexpectedError(err)
	}
	return &launch, nil
}

func GetLaunch(ctx context.Context, caller *Principal, id int) (*Launch, error) {
	if caller == nil {
		return nil, utils.UnauthenticatedError(utils.MsgUnauthenticated)
	}
	db := config.GetDB()
	launch, err := fetchLaunch(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if err := EnsureCongregationAccess(ctx, db, caller, launch.CongregationId); err != nil {
		return nil, err
	}
	return launch, nil
}

func ListLaunches(ctx context.Context, caller *Principal, filter *LaunchFilter) ([]Launch, error) {
	if caller == nil {
		return nil, utils.UnauthenticatedError(utils.MsgUnauthenticated)
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

	dbCtx := db.WithContext(ctx).Where("congregation_id IN ?", utils.UniqueSlice(congregationIds))
	if filter.StartDate != "" {
		start, err := utils.ParseLocalDate(filter.StartDate, loc)
		if err != nil {
			return nil, utils.ValidationError(utils.MsgInvalidDate)
		}
		dbCtx = dbCtx.Where("date >= ?", utils.StartOfDayUTC(start, loc))
	}
	if filter.EndDate != "" {
		end, err := utils.ParseLocalDate(filter.EndDate, loc)
		if err != nil {
			return nil, utils.ValidationError(utils.MsgInvalidDate)
		}
		dbCtx = dbCtx.Where("date <= ?", utils.EndOfDayUTC(end, loc))
	}
	if filter.Status != "" {
		status, err := ParseLaunchStatus(filter.Status)
		if err != nil {
			return nil, utils.ValidationError(utils.MsgInvalidStatus)
		}
		dbCtx = dbCtx.Where("status = ?", status)
	}
	if filter.Type != "" {
		launchType, err := ParseLaunchType(filter.Type)
		if err != nil {
			return nil, utils.ValidationError(utils.MsgInvalidLaunchType)
		}
		dbCtx = dbCtx.Where("type = ?", launchType)
	}

	launches := []Launch{}
	if err := dbCtx.Order("date, id").Find(&launches).Error; err != nil {
		return nil, utils.UnexpectedError(err)
	}
	return launches, nil
}

// CancelLaunch marks an unlinked launch as canceled. Launches are never deleted.
func CancelLaunch(ctx context.Context, caller *Principal, id int) (*Launch, error) {
	if caller == nil {
		return nil, utils.UnauthenticatedError(utils.MsgUnauthenticated)
	}
	if !caller.Capabilities.CreateLaunch {
		return nil, utils.UnauthorizedError(utils.MsgNoPermission)
	}
	db := config.GetDB()
	launch, err := fetchLaunch(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if err := EnsureCongregationAccess(ctx, db, caller, launch.CongregationId); err != nil {
		return nil, err
	}
	if launch.IsLocked() {
		return nil, utils.ValidationError(utils.MsgLaunchLocked)
	}
	if launch.Status == LaunchStatusCanceled {
		return nil, utils.ValidationError(utils.MsgLaunchCanceled)
	}

	// the summary_id condition closes the race with a concurrent aggregation
	result := db.WithContext(ctx).Model(&Launch{}).
		Where("id = ? AND summary_id IS NULL AND status <> ?", id, LaunchStatusCanceled).
		Update("status", LaunchStatusCanceled)
	if result.Error != nil {
		return nil, utils.UnexpectedError(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, utils.ValidationError(utils.MsgLaunchLocked)
	}
	launch.Status = LaunchStatusCanceled
	return launch, nil
}

func fetchLaunch(ctx context.Context, db *gorm.DB, id int) (*Launch, error) {
	var launch Launch
	if err := db.WithContext(ctx).First(&launch, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError(utils.MsgLaunchNotFound)
		}
		return nil, utils.UnexpectedError(err)
	}
	return &launch, nil
}
