package models

import (
	"github.com/mmdatafocus/hrcrm_backend/config"
)

// AllModels lists every table of the service in dependency order.
func AllModels() []interface{} {
	return []interface{}{
		&UserType{}, &Gender{}, &Position{},
		&User{},
		&CoSheet{},
		&MyTarget{},
		&StudentResume{},
		&InterviewDetail{}, &InterviewAnalysis{},
		&MailOutbox{},
		&IdempotencyKey{},
	}
}

func MigrateTable() error {
	db := config.GetDB()
	return db.AutoMigrate(AllModels()...)
}
