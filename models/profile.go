package models

import (
	"context"
	"time"

	"github.com/tesouraria/church_backend/appctx"
)

// Capabilities are the permission flags of a profile, resolved once per request.
type Capabilities struct {
	CreateLaunch      bool `gorm:"not null;default:false" json:"createLaunch"`
	CreateSummary     bool `gorm:"not null;default:false" json:"createSummary"`
	EditSummary       bool `gorm:"not null;default:false" json:"editSummary"`
	DeleteSummary     bool `gorm:"not null;default:false" json:"deleteSummary"`
	ListSummary       bool `gorm:"not null;default:false" json:"listSummary"`
	ApproveTreasury   bool `gorm:"not null;default:false" json:"approveTreasury"`
	ApproveAccountant bool `gorm:"not null;default:false" json:"approveAccountant"`
	ApproveDirector   bool `gorm:"not null;default:false" json:"approveDirector"`
	AllCongregations  bool `gorm:"not null;default:false" json:"allCongregations"`
}

// FullCapabilities is granted to the administrator profile.
func FullCapabilities() Capabilities {
	return Capabilities{
		CreateLaunch:      true,
		CreateSummary:     true,
		EditSummary:       true,
		DeleteSummary:     true,
		ListSummary:       true,
		ApproveTreasury:   true,
		ApproveAccountant: true,
		ApproveDirector:   true,
		AllCongregations:  true,
	}
}

type Profile struct {
	ID           int          `gorm:"primary_key" json:"id"`
	Name         string       `gorm:"size:100;not null;unique" json:"name"`
	Capabilities Capabilities `gorm:"embedded" json:"capabilities"`
	CreatedAt    time.Time    `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time    `gorm:"autoUpdateTime" json:"updatedAt"`
}

// Principal is the authenticated caller.
type Principal struct {
	UserId          int          `json:"userId"`
	Username        string       `json:"username"`
	Name            string       `json:"name"`
	ProfileId       int          `json:"profileId"`
	Capabilities    Capabilities `json:"capabilities"`
	CongregationIds []int        `json:"congregationIds"`
}

// ActorName is what gets stamped into approved_by and created_by columns.
func (p *Principal) ActorName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Username
}

func NewContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyPrincipal, p)
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(appctx.ContextKeyPrincipal).(*Principal)
	return p, ok && p != nil
}
