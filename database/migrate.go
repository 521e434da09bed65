package database

import (
	"fmt"

	"github.com/yeremiapane/gaming-portal/models"
	"github.com/yeremiapane/gaming-portal/utils"
	"gorm.io/gorm"
)

// Models lists every table owned by the messaging subsystem, in creation order.
var Models = []interface{}{
	&models.User{},
	&models.ConversationMessage{},
	&models.Notification{},
	&models.BroadcastNotice{},
	&models.Loan{},
}

// Migrate creates or updates the schema, including the composite indexes the
// reminder dedup query and the conversation history read rely on.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}

	indexes := []struct {
		model interface{}
		name  string
	}{
		{&models.Notification{}, "idx_notification_dedup"},
		{&models.ConversationMessage{}, "idx_conversation_user_created"},
		{&models.Loan{}, "idx_loan_status_due"},
	}
	for _, idx := range indexes {
		if !db.Migrator().HasIndex(idx.model, idx.name) {
			if err := db.Migrator().CreateIndex(idx.model, idx.name); err != nil {
				return fmt.Errorf("create index %s: %w", idx.name, err)
			}
		}
		utils.InfoLogger.Debugf("Index verified: %s", idx.name)
	}

	utils.InfoLogger.Println("AutoMigrate completed.")
	return nil
}
