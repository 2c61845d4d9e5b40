package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

var (
	db *gorm.DB
)

func GetDB() *gorm.DB {
	return db
}

// SetDB replaces the global connection. Used by tools and tests that open their own dialector.
func SetDB(conn *gorm.DB) {
	db = conn
}

func init() {
	// .env is optional
	_ = godotenv.Load()
}

// dsnFromEnv builds the MySQL DSN from DB_USER, DB_PASSWORD, DB_HOST, DB_PORT and DB_NAME.
// DB_HOST=/cloudsql/<CONNECTION_NAME> connects through the unix socket of the SQL proxy.
func dsnFromEnv() string {
	cfg := gomysql.NewConfig()
	cfg.User = os.Getenv("DB_USER")
	cfg.Passwd = os.Getenv("DB_PASSWORD")
	cfg.DBName = os.Getenv("DB_NAME")
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	host := os.Getenv("DB_HOST")
	if strings.HasPrefix(host, "/cloudsql/") {
		cfg.Net = "unix"
		cfg.Addr = host
	} else {
		cfg.Net = "tcp"
		cfg.Addr = host + ":" + os.Getenv("DB_PORT")
	}
	return cfg.FormatDSN()
}

// ConnectDatabaseWithRetry blocks until the database answers and sets the global DB.
// Call it from main() after the HTTP server is listening; until then app routes answer 503.
func ConnectDatabaseWithRetry() {
	dsn := dsnFromEnv()
	for attempt := 1; ; attempt++ {
		conn, err := openDatabase(dsn)
		if err == nil {
			db = conn
			logg.WithField("attempt", attempt).Info("connected to database")
			return
		}
		wait := retryDelay(attempt)
		logg.WithFields(logrus.Fields{
			"attempt": attempt,
			"retry":   wait.String(),
		}).Error("failed to connect database: " + err.Error())
		time.Sleep(wait)
	}
}

func openDatabase(dsn string) (*gorm.DB, error) {
	conn, err := gorm.Open(mysql.Open(dsn), initConfig())
	if err != nil {
		return nil, err
	}
	if sqlDB, err := conn.DB(); err == nil {
		configurePool(sqlDB.SetMaxOpenConns, sqlDB.SetMaxIdleConns, sqlDB.SetConnMaxLifetime, sqlDB.SetConnMaxIdleTime)
	}
	if err := conn.Use(otelgorm.NewPlugin()); err != nil {
		LogError(logg, "database.go", "openDatabase", "install otelgorm plugin", nil, err)
	}
	if err := conn.Use(NewCongregationGuardPlugin()); err != nil {
		return nil, err
	}
	return conn, nil
}

// Env overrides:
// - DB_MAX_OPEN_CONNS (default 25)
// - DB_MAX_IDLE_CONNS (default 10)
// - DB_CONN_MAX_LIFETIME_SECONDS (default 300)
// - DB_CONN_MAX_IDLE_TIME_SECONDS (default 60)
func configurePool(maxOpen func(int), maxIdle func(int), maxLifetime func(time.Duration), maxIdleTime func(time.Duration)) {
	if n := intFromEnv("DB_MAX_OPEN_CONNS", 25); n > 0 {
		maxOpen(n)
	}
	if n := intFromEnv("DB_MAX_IDLE_CONNS", 10); n >= 0 {
		maxIdle(n)
	}
	if n := intFromEnv("DB_CONN_MAX_LIFETIME_SECONDS", 300); n > 0 {
		maxLifetime(time.Duration(n) * time.Second)
	}
	if n := intFromEnv("DB_CONN_MAX_IDLE_TIME_SECONDS", 60); n > 0 {
		maxIdleTime(time.Duration(n) * time.Second)
	}
}

// retryDelay doubles from 2s and is capped at 30s.
func retryDelay(attempt int) time.Duration {
	if attempt > 5 {
		return 30 * time.Second
	}
	wait := time.Second << attempt
	if wait > 30*time.Second {
		return 30 * time.Second
	}
	return wait
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func initConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         initLog(),
		NamingStrategy: schema.NamingStrategy{},
		// launches keep summary_id after their summary is deleted
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func initLog() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			Colorful:      false,
			LogLevel:      logger.Error,
			SlowThreshold: time.Second,
		},
	)
}
