package models

import (
	"context"

	"github.com/tesouraria/church_backend/config"
	"github.com/tesouraria/church_backend/utils"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// launch columns cleared on the NORMAL launches of a deleted summary
func launchApprovalResets() map[string]interface{} {
	resets := map[string]interface{}{}
	for _, tier := range approvalTiers {
		resets[tier.launchByColumn] = nil
		resets[tier.launchAtColumn] = nil
	}
	return resets
}

// DeleteSummary resets approval fields on the summary's NORMAL launches and removes the summary row.
// APPROVED launches are left as they are, and summary_id is kept unless detaching is enabled.
func DeleteSummary(ctx context.Context, caller *Principal, id int) (string, error) {
	ctx, span := tracer.Start(ctx, "DeleteSummary")
	defer span.End()
	span.SetAttributes(attribute.Int("summary_id", id))

	if caller == nil {
		return "", utils.UnauthenticatedError(utils.MsgUnauthenticated)
	}
	if !caller.Capabilities.DeleteSummary {
		return "", utils.UnauthorizedError(utils.MsgNoPermission)
	}
	if id <= 0 {
		return "", utils.ValidationError(utils.MsgMissingFields)
	}

	db := config.GetDB()
	summary, err := fetchSummary(ctx, db, id)
	if err != nil {
		return "", err
	}
	if err := EnsureCongregationAccess(ctx, db, caller, summary.CongregationId); err != nil {
		return "", err
	}

	detach := config.DetachLaunchesOnSummaryDelete()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Launch{}).
			Where("summary_id = ? AND status = ?", summary.ID, LaunchStatusNormal).
			Updates(launchApprovalResets()).Error; err != nil {
			return err
		}
		if detach {
			if err := tx.Model(&Launch{}).
				Where("summary_id = ?", summary.ID).
				Update("summary_id", nil).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&CongregationSummary{}, summary.ID).Error
	})
	if err != nil {
		return "", utils.UnexpectedError(err)
	}
	return utils.MsgSummaryDeleted, nil
}
