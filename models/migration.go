package models

import (
	"log"

	"github.com/venturelab/accelerator_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Account{},
		&StartupProfile{}, &PartnerProfile{},
		&LevelDefinition{}, &TaskInstance{},
		&PartnershipRequest{},
		&KPIRecord{},
		&DomainEventRecord{},
		&History{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
