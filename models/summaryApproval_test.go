package models

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tesouraria/church_backend/utils"
)

var approvalNow = time.Date(2024, 4, 2, 15, 4, 5, 0, time.UTC)

func pendingSummary() *CongregationSummary {
	return &CongregationSummary{ID: 7, CongregationId: 1, Status: SummaryStatusPending}
}

func TestPlanSummaryUpdateTreasurerForward(t *testing.T) {
	summary := pendingSummary()
	plan, err := planSummaryUpdate(summary, &UpdateCongregationSummary{ID: 7, TreasurerApproved: utils.NewTrue()},
		Capabilities{ApproveTreasury: true}, "Maria", approvalNow)
	require.NoError(t, err)

	assert.True(t, summary.TreasurerApproved)
	require.NotNil(t, summary.TreasurerApprovedBy)
	assert.Equal(t, "Maria", *summary.TreasurerApprovedBy)
	assert.Equal(t, approvalNow, *summary.TreasurerApprovedAt)
	assert.Equal(t, SummaryStatusPending, summary.Status)

	require.Len(t, plan.cascades, 1)
	assert.Equal(t, LaunchStatusNormal, plan.cascades[0].fromStatus)
	assert.Equal(t, map[string]interface{}{
		"treasury_approved_by": "Maria",
		"treasury_approved_at": approvalNow,
	}, plan.cascades[0].updates)
	assert.Equal(t, []TierTransition{{Tier: "treasurer", Forward: true}}, plan.transitions)
	assert.Equal(t, true, plan.summaryUpdates["treasurer_approved"])
	assert.Equal(t, SummaryStatusPending, plan.summaryUpdates["status"])
}

func TestPlanSummaryUpdateDirectorForwardApprovesLaunches(t *testing.T) {
	summary := pendingSummary()
	plan, err := planSummaryUpdate(summary, &UpdateCongregationSummary{ID: 7, DirectorApproved: utils.NewTrue()},
		Capabilities{ApproveDirector: true}, "Pastor João", approvalNow)
	require.NoError(t, err)

	assert.Equal(t, SummaryStatusApproved, summary.Status)
	require.Len(t, plan.cascades, 1)
	cascade := plan.cascades[0]
	assert.Equal(t, LaunchStatusNormal, cascade.fromStatus)
	assert.Equal(t, LaunchStatusApproved, cascade.updates["status"])
	assert.Equal(t, ApprovedViaSummary, cascade.updates["approved_via"])
	assert.Equal(t, "Pastor João", cascade.updates["director_approved_by"])
	assert.Equal(t, SummaryStatusApproved, plan.summaryUpdates["status"])
}

func TestPlanSummaryUpdateDirectorReverseRestoresLaunches(t *testing.T) {
	by := "Pastor João"
	at := approvalNow.Add(-time.Hour)
	summary := &CongregationSummary{ID: 7, DirectorApproved: true, DirectorApprovedBy: &by, DirectorApprovedAt: &at, Status: SummaryStatusApproved}

	plan, err := planSummaryUpdate(summary, &UpdateCongregationSummary{ID: 7, DirectorApproved: utils.NewFalse()},
		Capabilities{ApproveDirector: true}, "Admin", approvalNow)
	require.NoError(t, err)

	assert.False(t, summary.DirectorApproved)
	assert.Nil(t, summary.DirectorApprovedBy)
	assert.Nil(t, summary.DirectorApprovedAt)
	assert.Equal(t, SummaryStatusPending, summary.Status)

	require.Len(t, plan.cascades, 1)
	cascade := plan.cascades[0]
	assert.Equal(t, LaunchStatusApproved, cascade.fromStatus)
	assert.Equal(t, LaunchStatusNormal, cascade.updates["status"])
	assert.Contains(t, cascade.updates, "approved_via")
	assert.Nil(t, cascade.updates["approved_via"])
	assert.Nil(t, cascade.updates["director_approved_by"])
	assert.Equal(t, []TierTransition{{Tier: "director", Forward: false}}, plan.transitions)
}

func TestPlanSummaryUpdateIgnoresTierWithoutCapability(t *testing.T) {
	by := "Pastor João"
	summary := &CongregationSummary{ID: 7, DirectorApproved: true, DirectorApprovedBy: &by, Status: SummaryStatusApproved}

	plan, err := planSummaryUpdate(summary, &UpdateCongregationSummary{
		ID:                7,
		DirectorApproved:  utils.NewFalse(),
		TreasurerApproved: utils.NewTrue(),
	}, Capabilities{ApproveAccountant: true}, "Maria", approvalNow)
	require.NoError(t, err)

	assert.True(t, summary.DirectorApproved)
	assert.False(t, summary.TreasurerApproved)
	assert.Equal(t, SummaryStatusApproved, summary.Status)
	assert.Empty(t, plan.cascades)
	assert.Empty(t, plan.transitions)
	assert.Equal(t, map[string]interface{}{"status": SummaryStatusApproved}, plan.summaryUpdates)
}

func TestPlanSummaryUpdateOmittedIntentLeavesTier(t *testing.T) {
	by := "Maria"
	summary := &CongregationSummary{ID: 7, TreasurerApproved: true, TreasurerApprovedBy: &by}

	plan, err := planSummaryUpdate(summary, &UpdateCongregationSummary{ID: 7}, FullCapabilities(), "Admin", approvalNow)
	require.NoError(t, err)

	assert.True(t, summary.TreasurerApproved)
	assert.Equal(t, "Maria", *summary.TreasurerApprovedBy)
	assert.Empty(t, plan.cascades)
}

func TestPlanSummaryUpdateRestampsApprovedTier(t *testing.T) {
	by := "Maria"
	at := approvalNow.Add(-48 * time.Hour)
	summary := &CongregationSummary{ID: 7, AccountantApproved: true, AccountantApprovedBy: &by, AccountantApprovedAt: &at}

	plan, err := planSummaryUpdate(summary, &UpdateCongregationSummary{ID: 7, AccountantApproved: utils.NewTrue()},
		Capabilities{ApproveAccountant: true}, "Carlos", approvalNow)
	require.NoError(t, err)

	assert.Equal(t, "Carlos", *summary.AccountantApprovedBy)
	assert.Equal(t, approvalNow, *summary.AccountantApprovedAt)
	carlos := "Carlos"
	assert.Equal(t, &carlos, plan.summaryUpdates["accountant_approved_by"])
	require.Len(t, plan.cascades, 1)
	assert.Equal(t, LaunchStatusNormal, plan.cascades[0].fromStatus)
	assert.Equal(t, "Carlos", plan.cascades[0].updates["accountant_approved_by"])
	assert.Empty(t, plan.transitions)
}

// A director round trip leaves NORMAL launches without treasury stamps; approving the
// treasurer tier again must still reach them.
func TestPlanSummaryUpdateTreasurerReachesLaunchesAfterDirectorReversal(t *testing.T) {
	summary := pendingSummary()
	steps := []struct {
		input UpdateCongregationSummary
		caps  Capabilities
		actor string
	}{
		{UpdateCongregationSummary{ID: 7, DirectorApproved: utils.NewTrue()}, Capabilities{ApproveDirector: true}, "Pastor João"},
		{UpdateCongregationSummary{ID: 7, TreasurerApproved: utils.NewTrue()}, Capabilities{ApproveTreasury: true}, "Maria"},
		{UpdateCongregationSummary{ID: 7, DirectorApproved: utils.NewFalse()}, Capabilities{ApproveDirector: true}, "Pastor João"},
	}
	for i, step := range steps {
		input := step.input
		_, err := planSummaryUpdate(summary, &input, step.caps, step.actor, approvalNow.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
	}
	require.True(t, summary.TreasurerApproved)
	require.Equal(t, SummaryStatusPending, summary.Status)

	later := approvalNow.Add(24 * time.Hour)
	plan, err := planSummaryUpdate(summary, &UpdateCongregationSummary{ID: 7, TreasurerApproved: utils.NewTrue()},
		Capabilities{ApproveTreasury: true}, "Maria", later)
	require.NoError(t, err)

	require.Len(t, plan.cascades, 1)
	assert.Equal(t, LaunchStatusNormal, plan.cascades[0].fromStatus)
	assert.Equal(t, map[string]interface{}{
		"treasury_approved_by": "Maria",
		"treasury_approved_at": later,
	}, plan.cascades[0].updates)
	assert.Equal(t, later, *summary.TreasurerApprovedAt)
	assert.Equal(t, &later, plan.summaryUpdates["treasurer_approved_at"])
	assert.Empty(t, plan.transitions)
}

func TestPlanSummaryUpdateManualFields(t *testing.T) {
	deposit := decimal.RequireFromString("150.456")
	talon := "A-123"
	input := &UpdateCongregationSummary{ID: 7, DepositValue: &deposit, TalonNumber: &talon}

	_, err := planSummaryUpdate(pendingSummary(), input, Capabilities{ApproveTreasury: true}, "Maria", approvalNow)
	requireKind(t, err, utils.KindUnauthorized)

	summary := pendingSummary()
	plan, err := planSummaryUpdate(summary, input, Capabilities{EditSummary: true}, "Maria", approvalNow)
	require.NoError(t, err)
	require.NotNil(t, summary.DepositValue)
	assert.True(t, summary.DepositValue.Equal(decimal.RequireFromString("150.46")))
	assert.Equal(t, "A-123", *summary.TalonNumber)
	assert.Nil(t, summary.CashValue)
	assert.Contains(t, plan.summaryUpdates, "deposit_value")
	assert.NotContains(t, plan.summaryUpdates, "cash_value")
}

func summaryRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "congregation_id", "start_date", "end_date", "summary_type", "director_approved", "status"}).
		AddRow(7, 1, time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC), time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC), "STANDARD", false, "PENDING")
}

func TestUpdateSummaryCascadesDirectorApproval(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `congregation_summaries`")).WillReturnRows(summaryRows())
	expectCongregations(mock, 1)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `congregation_summaries` SET")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE `launches` SET .*summary_id = \\? AND status = \\?").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	caller := &Principal{UserId: 3, Username: "director", Name: "Pastor João", Capabilities: Capabilities{ApproveDirector: true, AllCongregations: true}}
	summary, transitions, err := UpdateSummary(context.Background(), caller, &UpdateCongregationSummary{ID: 7, DirectorApproved: utils.NewTrue()})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, SummaryStatusApproved, summary.Status)
	assert.Equal(t, "Pastor João", *summary.DirectorApprovedBy)
	assert.Equal(t, []TierTransition{{Tier: "director", Forward: true}}, transitions)
	assert.WithinDuration(t, time.Now(), summary.UpdatedAt, time.Minute)
	assert.Equal(t, *summary.DirectorApprovedAt, summary.UpdatedAt)
}

func TestUpdateSummaryNotFound(t *testing.T) {
	mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `congregation_summaries`")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, _, err := UpdateSummary(context.Background(), adminPrincipal(), &UpdateCongregationSummary{ID: 99, DirectorApproved: utils.NewTrue()})
	requireKind(t, err, utils.KindNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSummaryOtherCongregationForbidden(t *testing.T) {
	mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `congregation_summaries`")).WillReturnRows(summaryRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `user_congregations`")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	caller := &Principal{UserId: 4, Username: "treasurer", Capabilities: Capabilities{ApproveTreasury: true}}
	_, _, err := UpdateSummary(context.Background(), caller, &UpdateCongregationSummary{ID: 7, TreasurerApproved: utils.NewTrue()})
	requireKind(t, err, utils.KindUnauthorized)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteSummaryResetsNormalLaunches(t *testing.T) {
	t.Setenv("SUMMARY_DELETE_DETACH_LAUNCHES", "")
	mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `congregation_summaries`")).WillReturnRows(summaryRows())
	expectCongregations(mock, 1)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `launches` SET .*WHERE summary_id = \\? AND status = \\?").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `congregation_summaries`")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	msg, err := DeleteSummary(context.Background(), adminPrincipal(), 7)
	require.NoError(t, err)
	assert.Equal(t, utils.MsgSummaryDeleted, msg)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteSummaryDetachesLaunchesWhenEnabled(t *testing.T) {
	t.Setenv("SUMMARY_DELETE_DETACH_LAUNCHES", "true")
	mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `congregation_summaries`")).WillReturnRows(summaryRows())
	expectCongregations(mock, 1)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `launches` SET .*WHERE summary_id = \\? AND status = \\?").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `launches` SET `summary_id`=?")).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `congregation_summaries`")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := DeleteSummary(context.Background(), adminPrincipal(), 7)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteSummaryRequiresCapability(t *testing.T) {
	caller := adminPrincipal()
	caller.Capabilities.DeleteSummary = false

	_, err := DeleteSummary(context.Background(), caller, 7)
	requireKind(t, err, utils.KindUnauthorized)

	_, err = DeleteSummary(context.Background(), adminPrincipal(), 0)
	requireKind(t, err, utils.KindValidation)
}

func TestLaunchApprovalResetsCoversEveryTier(t *testing.T) {
	resets := launchApprovalResets()
	for _, column := range []string{
		"treasury_approved_by", "treasury_approved_at",
		"accountant_approved_by", "accountant_approved_at",
		"director_approved_by", "director_approved_at",
	} {
		assert.Contains(t, resets, column)
		assert.Nil(t, resets[column])
	}
	assert.NotContains(t, resets, "status")
}
