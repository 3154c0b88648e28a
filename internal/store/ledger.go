package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"festival-bot/internal/models"
)

// Ledger owns the per-participant condition flags.
type Ledger struct {
	db *gorm.DB
}

// Mark sets the condition flag. Marking an already-marked condition is a
// data-level no-op.
func (l *Ledger) Mark(participantID int64, cond models.Condition) error {
	return l.setFlag(participantID, cond, true)
}

// Unmark clears the condition flag, symmetric to Mark.
func (l *Ledger) Unmark(participantID int64, cond models.Condition) error {
	return l.setFlag(participantID, cond, false)
}

func (l *Ledger) setFlag(participantID int64, cond models.Condition, value bool) error {
	if !cond.Valid() {
		return fmt.Errorf("%w: условие %d", models.ErrInvalidArgument, cond)
	}
	err := l.db.Transaction(func(tx *gorm.DB) error {
		var rec models.ContestRecord
		if err := tx.Where("participant_id = ?", participantID).First(&rec).Error; err != nil {
			return err
		}
		switch cond {
		case models.Condition1:
			rec.Condition1 = value
		case models.Condition2:
			rec.Condition2 = value
		case models.Condition3:
			rec.Condition3 = value
		}
		return tx.Save(&rec).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ErrNotFound
		}
		return storageErr(err)
	}
	return nil
}

// Progress returns the condition flags and completed count for one
// participant.
func (l *Ledger) Progress(participantID int64) ([models.ConditionCount]bool, int, error) {
	var rec models.ContestRecord
	if err := l.db.Where("participant_id = ?", participantID).First(&rec).Error; err != nil {
		return [models.ConditionCount]bool{}, 0, translate(err)
	}
	return rec.Flags(), rec.Completed(), nil
}

// IsMarked reports the current state of one flag.
func (l *Ledger) IsMarked(participantID int64, cond models.Condition) (bool, error) {
	flags, _, err := l.Progress(participantID)
	if err != nil {
		return false, err
	}
	if !cond.Valid() {
		return false, fmt.Errorf("%w: условие %d", models.ErrInvalidArgument, cond)
	}
	return flags[cond-1], nil
}

// LeaderboardEntry pairs a contest record with its completed count.
type LeaderboardEntry struct {
	Record    models.ContestRecord
	Completed int
}

// Leaderboard orders by completed count descending; equal counts keep
// insertion order.
func (l *Ledger) Leaderboard(limit int) ([]LeaderboardEntry, error) {
	var recs []models.ContestRecord
	err := l.db.
		Order("(condition1 + condition2 + condition3) DESC, id ASC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, storageErr(err)
	}
	out := make([]LeaderboardEntry, 0, len(recs))
	for _, rec := range recs {
		out = append(out, LeaderboardEntry{Record: rec, Completed: rec.Completed()})
	}
	return out, nil
}

// CountMarked counts participants with the given condition marked, used for
// the volunteer roster view.
func (l *Ledger) CountMarked(cond models.Condition) (int64, error) {
	if !cond.Valid() {
		return 0, fmt.Errorf("%w: условие %d", models.ErrInvalidArgument, cond)
	}
	column := [models.ConditionCount]string{"condition1", "condition2", "condition3"}[cond-1]
	var n int64
	if err := l.db.Model(&models.ContestRecord{}).Where(column+" = ?", true).Count(&n).Error; err != nil {
		return 0, storageErr(err)
	}
	return n, nil
}
