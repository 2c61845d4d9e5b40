package models

import (
	"context"
	"time"

	"github.com/tesouraria/church_backend/utils"
	"gorm.io/gorm"
)

type Congregation struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:150;not null;unique" json:"name"`
	Phone     string    `gorm:"size:20" json:"phone"`
	Timezone  string    `gorm:"size:64;not null;default:America/Sao_Paulo" json:"timezone"`
	IsActive  *bool     `gorm:"not null;default:true" json:"isActive"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

type UserCongregation struct {
	UserId         int       `gorm:"primaryKey;autoIncrement:false" json:"userId"`
	CongregationId int       `gorm:"primaryKey;autoIncrement:false;index" json:"congregationId"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// EnsureCongregationAccess fails with Unauthorized unless the caller may act on every id.
func EnsureCongregationAccess(ctx context.Context, db *gorm.DB, caller *Principal, congregationIds ...int) error {
	if caller == nil {
		return utils.UnauthenticatedError(utils.MsgUnauthenticated)
	}
	ids := utils.UniqueSlice(congregationIds)
	if caller.Capabilities.AllCongregations {
		// no membership rows to consult, but the ids must still name real congregations
		if len(ids) == 0 {
			return nil
		}
		return ensureCongregationsExist(ctx, db, ids)
	}
	if len(ids) == 0 {
		return utils.ValidationError(utils.MsgMissingFields)
	}

	var count int64
	if err := db.WithContext(ctx).Model(&UserCongregation{}).
		Where("user_id = ? AND congregation_id IN ?", caller.UserId, ids).
		Count(&count).Error; err != nil {
		return utils.UnexpectedError(err)
	}
	if count != int64(len(ids)) {
		return utils.UnauthorizedError(utils.MsgNoCongregation)
	}
	return nil
}

func ensureCongregationsExist(ctx context.Context, db *gorm.DB, ids []int) error {
	var count int64
	if err := db.WithContext(ctx).Model(&Congregation{}).
		Where("id IN ?", ids).
		Count(&count).Error; err != nil {
		return utils.UnexpectedError(err)
	}
	if count != int64(len(ids)) {
		return utils.NotFoundError(utils.MsgCongregationMissing)
	}
	return nil
}
