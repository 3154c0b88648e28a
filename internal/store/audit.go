package store

import (
	"gorm.io/gorm"

	"festival-bot/internal/models"
)

// Audit is the append-only action log. Nothing in the bot reads it back;
// it exists for the organizers.
type Audit struct {
	db *gorm.DB
}

func (a *Audit) Append(actorID int64, action string) error {
	if err := a.db.Create(&models.AuditEntry{ActorID: actorID, Action: action}).Error; err != nil {
		return storageErr(err)
	}
	return nil
}
