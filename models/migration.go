package models

import (
	"log"

	"github.com/tesouraria/church_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Congregation{}, &Profile{}, &User{}, &UserCongregation{},
		&Launch{}, &CongregationSummary{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
