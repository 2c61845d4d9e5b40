package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tesouraria/church_backend/config"
	"github.com/tesouraria/church_backend/models"
	"github.com/tesouraria/church_backend/utils"
)

func TestSummaryLifecycle(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "tesouraria_test")
	t.Setenv("DEFAULT_TIMEZONE", "America/Sao_Paulo")
	t.Setenv("SUMMARY_END_SHIFT_HOURS", "-3")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	db := config.GetDB()
	if db == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}

	seeded, err := models.SeedAdmin(ctx, db, models.SeedAdminInput{
		Username:         "admin",
		Password:         "admin-pw",
		Name:             "Administrador",
		CongregationName: "Central",
		Timezone:         "America/Sao_Paulo",
	})
	if err != nil {
		t.Fatalf("SeedAdmin: %v", err)
	}

	login, err := models.Login(ctx, &models.LoginInput{Username: "admin", Password: "admin-pw"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	username, ok, err := models.ResolveSessionUsername(ctx, login.Token)
	if err != nil || !ok || username != "admin" {
		t.Fatalf("ResolveSessionUsername = %q, %v, %v", username, ok, err)
	}
	admin, err := models.LoadPrincipal(ctx, "admin")
	if err != nil {
		t.Fatalf("LoadPrincipal: %v", err)
	}

	loc, _ := time.LoadLocation("America/Sao_Paulo")
	today := time.Now().In(loc)
	startDate := today.AddDate(0, 0, -10).Format(utils.DateLayout)
	launchDate := today.AddDate(0, 0, -5).Format(utils.DateLayout)
	endDate := today.AddDate(0, 0, -1).Format(utils.DateLayout)

	newLaunch := func(launchType models.LaunchType, value string) *models.Launch {
		t.Helper()
		l, err := models.CreateLaunch(ctx, admin, &models.NewLaunch{
			CongregationId: seeded.CongregationId,
			Type:           launchType,
			Value:          decimal.RequireFromString(value),
			Date:           launchDate,
		})
		if err != nil {
			t.Fatalf("CreateLaunch(%s): %v", launchType, err)
		}
		return l
	}

	l1 := newLaunch(models.LaunchTypeTithe, "100.00")
	l2 := newLaunch(models.LaunchTypeServiceOffer, "35.50")
	l3 := newLaunch(models.LaunchType("CIRCULO"), "12.00")
	canceled := newLaunch(models.LaunchTypeVote, "999.00")
	if _, err := models.CancelLaunch(ctx, admin, canceled.ID); err != nil {
		t.Fatalf("CancelLaunch: %v", err)
	}
	if l3.Type != models.LaunchTypeCircle {
		t.Fatalf("legacy circle type stored as %s", l3.Type)
	}

	// l2 already belongs to another summary
	if err := db.Model(&models.Launch{}).Where("id = ?", l2.ID).Update("summary_id", 999).Error; err != nil {
		t.Fatalf("link l2: %v", err)
	}

	created, err := models.CreateSummary(ctx, admin, &models.NewCongregationSummary{
		CongregationId: seeded.CongregationId,
		StartDate:      startDate,
		EndDate:        endDate,
		SummaryType:    "STANDARD",
	})
	if err != nil {
		t.Fatalf("CreateSummary: %v", err)
	}
	if len(created.Launches) != 1 || created.Launches[0].ID != l1.ID {
		t.Fatalf("expected only l1 to be aggregated, got %+v", created.Launches)
	}
	if !created.EntradaSummary.Total.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("entry total = %s", created.EntradaSummary.Total)
	}
	summaryId := created.Summary.ID

	var reloaded models.Launch
	if err := db.First(&reloaded, l1.ID).Error; err != nil {
		t.Fatalf("reload l1: %v", err)
	}
	if reloaded.SummaryId == nil || *reloaded.SummaryId != summaryId {
		t.Fatalf("l1 summary_id = %v, want %d", reloaded.SummaryId, summaryId)
	}
	if _, err := models.CancelLaunch(ctx, admin, l1.ID); err == nil {
		t.Fatalf("expected linked launch to refuse cancel")
	}

	circle, err := models.CreateSummary(ctx, admin, &models.NewCongregationSummary{
		CongregationId: seeded.CongregationId,
		StartDate:      startDate,
		EndDate:        endDate,
		SummaryType:    "CIRCULO",
	})
	if err != nil {
		t.Fatalf("CreateSummary(CIRCULO): %v", err)
	}
	if circle.Summary.SummaryType != models.SummaryTypeCircle || !circle.EntradaSummary.Circle.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("unexpected circle summary: %+v", circle.EntradaSummary)
	}

	// a late launch in the same period collides with the existing summary
	newLaunch(models.LaunchTypeMission, "5.00")
	_, err = models.CreateSummary(ctx, admin, &models.NewCongregationSummary{
		CongregationId: seeded.CongregationId,
		StartDate:      startDate,
		EndDate:        endDate,
		SummaryType:    "STANDARD",
	})
	if status, msg := utils.ResolveError(err); status != 400 || msg != utils.MsgDuplicateSummary {
		t.Fatalf("duplicate create = %d %q", status, msg)
	}

	approved, _, err := models.UpdateSummary(ctx, admin, &models.UpdateCongregationSummary{
		ID:                summaryId,
		TreasurerApproved: utils.NewTrue(),
		DirectorApproved:  utils.NewTrue(),
	})
	if err != nil {
		t.Fatalf("UpdateSummary approve: %v", err)
	}
	if approved.Status != models.SummaryStatusApproved {
		t.Fatalf("summary status = %s", approved.Status)
	}
	if err := db.First(&reloaded, l1.ID).Error; err != nil {
		t.Fatalf("reload l1: %v", err)
	}
	if reloaded.Status != models.LaunchStatusApproved || reloaded.ApprovedVia == nil || *reloaded.ApprovedVia != models.ApprovedViaSummary {
		t.Fatalf("l1 after director approval: status=%s via=%v", reloaded.Status, reloaded.ApprovedVia)
	}
	if reloaded.TreasuryApprovedBy == nil || reloaded.DirectorApprovedBy == nil {
		t.Fatalf("l1 approvers not stamped")
	}

	if _, _, err := models.UpdateSummary(ctx, admin, &models.UpdateCongregationSummary{
		ID:               summaryId,
		DirectorApproved: utils.NewFalse(),
	}); err != nil {
		t.Fatalf("UpdateSummary reverse: %v", err)
	}
	if err := db.First(&reloaded, l1.ID).Error; err != nil {
		t.Fatalf("reload l1: %v", err)
	}
	if reloaded.Status != models.LaunchStatusNormal || reloaded.ApprovedVia != nil || reloaded.DirectorApprovedBy != nil {
		t.Fatalf("l1 after director reversal: status=%s via=%v", reloaded.Status, reloaded.ApprovedVia)
	}
	if reloaded.TreasuryApprovedBy == nil {
		t.Fatalf("treasury approval should survive director reversal")
	}

	msg, err := models.DeleteSummary(ctx, admin, summaryId)
	if err != nil || msg != utils.MsgSummaryDeleted {
		t.Fatalf("DeleteSummary = %q, %v", msg, err)
	}
	if _, err := models.GetSummary(ctx, admin, summaryId); err == nil {
		t.Fatalf("summary still readable after delete")
	}
	if err := db.First(&reloaded, l1.ID).Error; err != nil {
		t.Fatalf("reload l1: %v", err)
	}
	if reloaded.TreasuryApprovedBy != nil || reloaded.Status != models.LaunchStatusNormal {
		t.Fatalf("l1 approvals not reset after delete")
	}
	if reloaded.SummaryId == nil || *reloaded.SummaryId != summaryId {
		t.Fatalf("l1 summary_id should be kept after delete, got %v", reloaded.SummaryId)
	}

	audit, err := models.LoadSummaryAudit(ctx, admin, &models.SummaryAuditFilter{
		CongregationIds: fmt.Sprint(seeded.CongregationId),
		StartDate:       startDate,
		EndDate:         endDate,
		LaunchFilter:    "with",
	})
	if err != nil {
		t.Fatalf("LoadSummaryAudit: %v", err)
	}
	if audit.Totals.Rows != 1 || audit.Rows[0].Date != launchDate || !audit.Rows[0].HasSummary {
		t.Fatalf("unexpected audit: %+v", audit)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("tesouraria-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := dockerRun("exec", name, "redis-cli", "ping"); err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("tesouraria-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=tesouraria_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent"); err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// "127.0.0.1:49154\n"
	m := regexp.MustCompile(`:(\d+)`).FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	b, err := exec.Command("docker", args...).CombinedOutput()
	return string(b), err
}
