package db

import (
	"log"
	"ticketing/src/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open connects to postgres. Unique violations come back as gorm.ErrDuplicatedKey.
func Open(dsn string) (*gorm.DB, error) {
	return OpenDialector(postgres.Open(dsn))
}

func OpenDialector(dialector gorm.Dialector) (*gorm.DB, error) {
	_db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		log.Printf("Error connecting to database: %s\n", err.Error())
		return nil, err
	}
	sqlDB, err := _db.DB()
	if err != nil {
		log.Printf("Error establishing connection to database: %s\n", err.Error())
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	return _db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Event{},
		&models.Booking{},
		&models.TicketDelivery{},
	)
}
