package models

import (
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"github.com/tesouraria/church_backend/config"
	"github.com/tesouraria/church_backend/utils"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newMockDB installs a sqlmock-backed gorm connection as the global DB.
func newMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	prev := config.GetDB()
	config.SetDB(gdb)
	t.Cleanup(func() {
		config.SetDB(prev)
		_ = sqlDB.Close()
	})
	return mock
}

func adminPrincipal() *Principal {
	return &Principal{UserId: 1, Username: "admin", Name: "Admin", Capabilities: FullCapabilities()}
}

// expectCongregations answers the existence check an all-congregations caller goes through.
func expectCongregations(mock sqlmock.Sqlmock, found int) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `congregations`")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(found))
}

func requireKind(t *testing.T, err error, kind utils.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	var appErr *utils.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	require.Equal(t, kind, appErr.Kind, "message: %s", appErr.Message)
}
