package models

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tesouraria/church_backend/utils"
)

func launchRows(summaryId interface{}, status string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "congregation_id", "type", "value", "date", "status", "summary_id"}).
		AddRow(4, 1, "TITHE", "80.00", time.Date(2024, 3, 5, 3, 0, 0, 0, time.UTC), status, summaryId)
}

func TestNewLaunchDecodesLegacyCircle(t *testing.T) {
	var input NewLaunch
	require.NoError(t, json.Unmarshal([]byte(`{"congregationId":1,"type":"CIRCULO","value":"10.5","date":"2024-03-05"}`), &input))
	assert.Equal(t, LaunchTypeCircle, input.Type)
	assert.True(t, input.Value.Equal(decimal.RequireFromString("10.5")))

	assert.Error(t, json.Unmarshal([]byte(`{"type":"DONATION"}`), &input))
}

func TestCreateLaunchStoresLocalMidnight(t *testing.T) {
	t.Setenv("DEFAULT_TIMEZONE", "America/Sao_Paulo")
	mock := newMockDB(t)

	expectCongregations(mock, 1)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `launches`")).WillReturnResult(sqlmock.NewResult(21, 1))
	mock.ExpectCommit()

	launch, err := CreateLaunch(context.Background(), adminPrincipal(), &NewLaunch{
		CongregationId: 1,
		Type:           LaunchType("CIRCULO"),
		Value:          decimal.RequireFromString("12.345"),
		Date:           "2024-03-05",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, 21, launch.ID)
	assert.Equal(t, LaunchTypeCircle, launch.Type)
	assert.Equal(t, LaunchStatusNormal, launch.Status)
	assert.True(t, launch.Value.Equal(decimal.RequireFromString("12.35")))
	assert.Equal(t, time.Date(2024, 3, 5, 3, 0, 0, 0, time.UTC), launch.Date)
	assert.Nil(t, launch.SummaryId)
}

func TestCreateLaunchUnknownCongregation(t *testing.T) {
	mock := newMockDB(t)
	expectCongregations(mock, 0)

	_, err := CreateLaunch(context.Background(), adminPrincipal(), &NewLaunch{
		CongregationId: 404,
		Type:           LaunchTypeTithe,
		Value:          decimal.NewFromInt(10),
		Date:           "2024-03-05",
	})
	requireKind(t, err, utils.KindNotFound)
	_, msg := utils.ResolveError(err)
	assert.Equal(t, utils.MsgCongregationMissing, msg)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateLaunchValidation(t *testing.T) {
	ctx := context.Background()

	_, err := CreateLaunch(ctx, adminPrincipal(), &NewLaunch{CongregationId: 1, Type: LaunchTypeTithe, Value: decimal.Zero, Date: "2024-03-05"})
	requireKind(t, err, utils.KindValidation)

	_, err = CreateLaunch(ctx, adminPrincipal(), &NewLaunch{CongregationId: 1, Type: LaunchTypeTithe, Value: decimal.NewFromInt(1), Date: "ontem"})
	requireKind(t, err, utils.KindValidation)

	caller := adminPrincipal()
	caller.Capabilities.CreateLaunch = false
	_, err = CreateLaunch(ctx, caller, &NewLaunch{CongregationId: 1, Type: LaunchTypeTithe, Value: decimal.NewFromInt(1), Date: "2024-03-05"})
	requireKind(t, err, utils.KindUnauthorized)
}

func TestCancelLaunch(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `launches`")).WillReturnRows(launchRows(nil, "NORMAL"))
	expectCongregations(mock, 1)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `launches` SET `status`=.*summary_id IS NULL").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	launch, err := CancelLaunch(context.Background(), adminPrincipal(), 4)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, LaunchStatusCanceled, launch.Status)
}

func TestCancelLaunchRefusesLinkedLaunch(t *testing.T) {
	mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `launches`")).WillReturnRows(launchRows(7, "NORMAL"))
	expectCongregations(mock, 1)

	_, err := CancelLaunch(context.Background(), adminPrincipal(), 4)
	requireKind(t, err, utils.KindValidation)
	_, msg := utils.ResolveError(err)
	assert.Equal(t, utils.MsgLaunchLocked, msg)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelLaunchLosesRaceWithAggregation(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `launches`")).WillReturnRows(launchRows(nil, "NORMAL"))
	expectCongregations(mock, 1)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `launches` SET `status`").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	_, err := CancelLaunch(context.Background(), adminPrincipal(), 4)
	_, msg := utils.ResolveError(err)
	assert.Equal(t, utils.MsgLaunchLocked, msg)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelLaunchAlreadyCanceled(t *testing.T) {
	mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `launches`")).WillReturnRows(launchRows(nil, "CANCELED"))
	expectCongregations(mock, 1)

	_, err := CancelLaunch(context.Background(), adminPrincipal(), 4)
	_, msg := utils.ResolveError(err)
	assert.Equal(t, utils.MsgLaunchCanceled, msg)
}
