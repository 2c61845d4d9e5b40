package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tesouraria/church_backend/config"
	"github.com/tesouraria/church_backend/utils"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

type UpdateCongregationSummary struct {
	ID                 int              `json:"id" validate:"required,gt=0"`
	DepositValue       *decimal.Decimal `json:"depositValue"`
	CashValue          *decimal.Decimal `json:"cashValue"`
	TalonNumber        *string          `json:"talonNumber" validate:"omitempty,max=50"`
	TreasurerApproved  *bool            `json:"treasurerApproved"`
	AccountantApproved *bool            `json:"accountantApproved"`
	DirectorApproved   *bool            `json:"directorApproved"`
}

func (input *UpdateCongregationSummary) hasManualFields() bool {
	return input.DepositValue != nil || input.CashValue != nil || input.TalonNumber != nil
}

// approvalTier describes one approval authority over a summary and the cascade it drives on the linked launches.
type approvalTier struct {
	name    string
	allowed func(Capabilities) bool
	intent  func(*UpdateCongregationSummary) *bool
	// state returns pointers to the tier's flag, approver and timestamp on the summary
	state func(*CongregationSummary) (*bool, **string, **time.Time)

	flagColumn string
	byColumn   string
	atColumn   string

	launchByColumn string
	launchAtColumn string

	forwardFrom  LaunchStatus
	reverseFrom  LaunchStatus
	forwardExtra map[string]interface{}
	reverseExtra map[string]interface{}
}

var approvalTiers = []approvalTier{
	{
		name:    "treasurer",
		allowed: func(c Capabilities) bool { return c.ApproveTreasury },
		intent:  func(in *UpdateCongregationSummary) *bool { return in.TreasurerApproved },
		state: func(s *CongregationSummary) (*bool, **string, **time.Time) {
			return &s.TreasurerApproved, &s.TreasurerApprovedBy, &s.TreasurerApprovedAt
		},
		flagColumn:     "treasurer_approved",
		byColumn:       "treasurer_approved_by",
		atColumn:       "treasurer_approved_at",
		launchByColumn: "treasury_approved_by",
		launchAtColumn: "treasury_approved_at",
		forwardFrom:    LaunchStatusNormal,
		reverseFrom:    LaunchStatusNormal,
	},
	{
		name:    "accountant",
		allowed: func(c Capabilities) bool { return c.ApproveAccountant },
		intent:  func(in *UpdateCongregationSummary) *bool { return in.AccountantApproved },
		state: func(s *CongregationSummary) (*bool, **string, **time.Time) {
			return &s.AccountantApproved, &s.AccountantApprovedBy, &s.AccountantApprovedAt
		},
		flagColumn:     "accountant_approved",
		byColumn:       "accountant_approved_by",
		atColumn:       "accountant_approved_at",
		launchByColumn: "accountant_approved_by",
		launchAtColumn: "accountant_approved_at",
		forwardFrom:    LaunchStatusNormal,
		reverseFrom:    LaunchStatusNormal,
	},
	{
		name:    "director",
		allowed: func(c Capabilities) bool { return c.ApproveDirector },
		intent:  func(in *UpdateCongregationSummary) *bool { return in.DirectorApproved },
		state: func(s *CongregationSummary) (*bool, **string, **time.Time) {
			return &s.DirectorApproved, &s.DirectorApprovedBy, &s.DirectorApprovedAt
		},
		flagColumn:     "director_approved",
		byColumn:       "director_approved_by",
		atColumn:       "director_approved_at",
		launchByColumn: "director_approved_by",
		launchAtColumn: "director_approved_at",
		forwardFrom:    LaunchStatusNormal,
		reverseFrom:    LaunchStatusApproved,
		forwardExtra: map[string]interface{}{
			"status":       LaunchStatusApproved,
			"approved_via": ApprovedViaSummary,
		},
		reverseExtra: map[string]interface{}{
			"status":       LaunchStatusNormal,
			"approved_via": nil,
		},
	},
}

// TierTransition records one tier that changed state in an update.
type TierTransition struct {
	Tier    string
	Forward bool
}

// launchCascade is a bulk update over the launches of a summary currently in fromStatus.
type launchCascade struct {
	fromStatus LaunchStatus
	updates    map[string]interface{}
}

type summaryUpdatePlan struct {
	summaryUpdates map[string]interface{}
	cascades       []launchCascade
	transitions    []TierTransition
}

// planSummaryUpdate applies input to summary in memory and returns the writes that persist it.
// Tiers whose capability is missing or whose intent is omitted are left untouched. A given intent
// always stamps (or clears) the tier and cascades to the launches, even when the summary flag already
// matches; only real flag changes are reported as transitions.
func planSummaryUpdate(summary *CongregationSummary, input *UpdateCongregationSummary, caps Capabilities, actor string, now time.Time) (*summaryUpdatePlan, error) {
	if input.hasManualFields() && !caps.EditSummary {
		return nil, utils.UnauthorizedError(utils.MsgNoPermission)
	}

	plan := &summaryUpdatePlan{summaryUpdates: map[string]interface{}{}}

	for _, tier := range approvalTiers {
		if !tier.allowed(caps) {
			continue
		}
		intent := tier.intent(input)
		if intent == nil {
			continue
		}
		flag, by, at := tier.state(summary)
		changed := *intent != *flag

		launchUpdates := map[string]interface{}{}
		var fromStatus LaunchStatus
		var extra map[string]interface{}
		if *intent {
			stampBy, stampAt := actor, now
			*flag, *by, *at = true, &stampBy, &stampAt
			launchUpdates[tier.launchByColumn] = actor
			launchUpdates[tier.launchAtColumn] = now
			fromStatus, extra = tier.forwardFrom, tier.forwardExtra
		} else {
			*flag, *by, *at = false, nil, nil
			launchUpdates[tier.launchByColumn] = nil
			launchUpdates[tier.launchAtColumn] = nil
			fromStatus, extra = tier.reverseFrom, tier.reverseExtra
		}
		for k, v := range extra {
			launchUpdates[k] = v
		}

		plan.summaryUpdates[tier.flagColumn] = *flag
		plan.summaryUpdates[tier.byColumn] = *by
		plan.summaryUpdates[tier.atColumn] = *at
		plan.cascades = append(plan.cascades, launchCascade{fromStatus: fromStatus, updates: launchUpdates})
		if changed {
			plan.transitions = append(plan.transitions, TierTransition{Tier: tier.name, Forward: *intent})
		}
	}

	if input.DepositValue != nil {
		v := input.DepositValue.Round(2)
		summary.DepositValue = &v
		plan.summaryUpdates["deposit_value"] = v
	}
	if input.CashValue != nil {
		v := input.CashValue.Round(2)
		summary.CashValue = &v
		plan.summaryUpdates["cash_value"] = v
	}
	if input.TalonNumber != nil {
		v := *input.TalonNumber
		summary.TalonNumber = &v
		plan.summaryUpdates["talon_number"] = v
	}

	summary.Status = statusFor(summary.DirectorApproved)
	plan.summaryUpdates["status"] = summary.Status
	return plan, nil
}

// UpdateSummary applies approval intents and manual fields to a summary and cascades the
// approval state to its linked launches, in one transaction.
func UpdateSummary(ctx context.Context, caller *Principal, input *UpdateCongregationSummary) (*CongregationSummary, []TierTransition, error) {
	ctx, span := tracer.Start(ctx, "UpdateSummary")
	defer span.End()

	if caller == nil {
		return nil, nil, utils.UnauthenticatedError(utils.MsgUnauthenticated)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, nil, err
	}
	span.SetAttributes(attribute.Int("summary_id", input.ID))

	db := config.GetDB()
	summary, err := fetchSummary(ctx, db, input.ID)
	if err != nil {
		return nil, nil, err
	}
	if err := EnsureCongregationAccess(ctx, db, caller, summary.CongregationId); err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	plan, err := planSummaryUpdate(summary, input, caller.Capabilities, caller.ActorName(), now)
	if err != nil {
		return nil, nil, err
	}
	summary.UpdatedAt = now
	plan.summaryUpdates["updated_at"] = now

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&CongregationSummary{}).
			Where("id = ?", summary.ID).
			Updates(plan.summaryUpdates).Error; err != nil {
			return err
		}
		for _, cascade := range plan.cascades {
			if err := tx.Model(&Launch{}).
				Where("summary_id = ? AND status = ?", summary.ID, cascade.fromStatus).
				Updates(cascade.updates).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, utils.UnexpectedError(err)
	}
	return summary, plan.transitions, nil
}

func fetchSummary(ctx context.Context, db *gorm.DB, id int) (*CongregationSummary, error) {
	var summary CongregationSummary
	if err := db.WithContext(ctx).First(&summary, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError(utils.MsgSummaryNotFound)
		}
		return nil, utils.UnexpectedError(err)
	}
	return &summary, nil
}
