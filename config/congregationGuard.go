package config

import (
	"context"
	"strings"

	"github.com/tesouraria/church_backend/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const congregationColumn = "congregation_id"

// CongregationGuardPlugin scopes UPDATE and DELETE statements to the caller's congregations
// when the model has a congregation_id column.
//
// NOTE:
// - Reads are not scoped; handlers answer 403 for foreign congregations instead of 404.
// - Raw SQL is not scoped.
// - Callers flagged with AllCongregations bypass the guard.
type CongregationGuardPlugin struct{}

func NewCongregationGuardPlugin() *CongregationGuardPlugin { return &CongregationGuardPlugin{} }

func (p *CongregationGuardPlugin) Name() string { return "congregation_guard" }

func (p *CongregationGuardPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Update().Before("gorm:update").Register("congregation_guard:update", congregationGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("congregation_guard:delete", congregationGuardCallback); err != nil {
		return err
	}
	return nil
}

func congregationGuardCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil || db.Statement.Schema == nil {
		return
	}
	ids, scoped := congregationScope(db.Statement.Context)
	if !scoped {
		return
	}
	if !hasCongregationColumn(db.Statement.Schema.DBNames) {
		return
	}

	values := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		values = append(values, id)
	}
	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.IN{
				Column: clause.Column{Table: db.Statement.Table, Name: congregationColumn},
				Values: values,
			},
		},
	})
}

// congregationScope returns the congregation ids writes must be limited to.
// An empty, non-nil list still scopes (and therefore matches nothing).
func congregationScope(ctx context.Context) ([]int, bool) {
	if ctx == nil {
		return nil, false
	}
	if all, ok := appctx.GetBool(ctx, appctx.ContextKeyAllCongregations); ok && all {
		return nil, false
	}
	ids, ok := appctx.GetInts(ctx, appctx.ContextKeyCongregationIds)
	if !ok || ids == nil {
		return nil, false
	}
	return ids, true
}

func hasCongregationColumn(dbNames []string) bool {
	for _, name := range dbNames {
		if strings.EqualFold(name, congregationColumn) {
			return true
		}
	}
	return false
}
