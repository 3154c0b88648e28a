package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"festival-bot/internal/models"
)

// Slot names one of the ephemeral message positions a chat can hold next to
// its home message.
type Slot string

const (
	SlotMap   Slot = "map"
	SlotEvent Slot = "event"
)

func (s Slot) column() (string, error) {
	switch s {
	case SlotMap:
		return "map_message_id", nil
	case SlotEvent:
		return "event_message_id", nil
	}
	return "", fmt.Errorf("%w: слот %q", models.ErrInvalidArgument, s)
}

// Sessions tracks the home message per chat and its ephemeral side messages.
// All operations are last-writer-wins on the per-chat row.
type Sessions struct {
	db *gorm.DB
}

// OpenHome makes messageID the authoritative home message for the chat. An
// older home message is abandoned, not deleted.
func (s *Sessions) OpenHome(chatID int64, messageID int) error {
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"home_message_id": messageID}),
	}).Create(&models.HomeSession{ChatID: chatID, HomeMessageID: messageID}).Error
	if err != nil {
		return storageErr(err)
	}
	return nil
}

// HomeRef returns the home message ID, or ok=false when the chat has never
// run the init command.
func (s *Sessions) HomeRef(chatID int64) (int, bool, error) {
	var sess models.HomeSession
	if err := s.db.First(&sess, chatID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, storageErr(err)
	}
	return sess.HomeMessageID, true, nil
}

// AttachEphemeral records an ephemeral message in the given slot. An
// occupied slot fails with ErrSlotOccupied; a return-to-menu pass frees it.
func (s *Sessions) AttachEphemeral(chatID int64, slot Slot, messageID int) error {
	column, err := slot.column()
	if err != nil {
		return err
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var sess models.HomeSession
		if err := tx.First(&sess, chatID).Error; err != nil {
			return err
		}
		current := sess.MapMessageID
		if slot == SlotEvent {
			current = sess.EventMessageID
		}
		if current != 0 {
			return models.ErrSlotOccupied
		}
		return tx.Model(&models.HomeSession{}).
			Where("chat_id = ?", chatID).
			Update(column, messageID).Error
	})
	if err != nil {
		if errors.Is(err, models.ErrSlotOccupied) {
			return models.ErrSlotOccupied
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ErrNotFound
		}
		return storageErr(err)
	}
	return nil
}

// DetachEphemeral clears the slot and returns the previous message ID. The
// caller deletes the underlying message.
func (s *Sessions) DetachEphemeral(chatID int64, slot Slot) (int, bool, error) {
	column, err := slot.column()
	if err != nil {
		return 0, false, err
	}
	var previous int
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var sess models.HomeSession
		if err := tx.First(&sess, chatID).Error; err != nil {
			return err
		}
		previous = sess.MapMessageID
		if slot == SlotEvent {
			previous = sess.EventMessageID
		}
		if previous == 0 {
			return nil
		}
		return tx.Model(&models.HomeSession{}).
			Where("chat_id = ?", chatID).
			Update(column, 0).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, storageErr(err)
	}
	return previous, previous != 0, nil
}
