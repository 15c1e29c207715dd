package database

import (
	"gorm.io/gorm"
)

type Database struct {
	reportRepo        *ReportRepo
	eventRepo         *EventRepo
	participationRepo *ParticipationRepo
	storedImageRepo   *StoredImageRepo
}

// New initializes a new Database struct with each repository using a shared GORM database instance
func New(db *gorm.DB) Database {
	return Database{
		reportRepo:        NewReportRepo(db),
		eventRepo:         NewEventRepo(db),
		participationRepo: NewParticipationRepo(db),
		storedImageRepo:   NewStoredImageRepo(db),
	}
}

// Accessor methods for each repository

func (d Database) ReportRepo() *ReportRepo {
	return d.reportRepo
}

func (d Database) EventRepo() *EventRepo {
	return d.eventRepo
}

func (d Database) ParticipationRepo() *ParticipationRepo {
	return d.participationRepo
}

func (d Database) StoredImageRepo() *StoredImageRepo {
	return d.storedImageRepo
}
