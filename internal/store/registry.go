package store

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"gorm.io/gorm"

	"festival-bot/internal/models"
	"festival-bot/internal/util"
)

// Animals used for call-sign issuance. Stored call-signs are normalized
// (lowercase, ё→е), so "Ёж" is issued as "еж#1".
var animals = []string{
	"Лиса", "Волк", "Медведь", "Заяц", "Олень", "Лось", "Енот", "Барсук",
	"Белка", "Ёж", "Рысь", "Бобр", "Выдра", "Куница", "Соболь", "Хорёк",
	"Ласка", "Росомаха", "Песец", "Бурундук",
}

const registerAttempts = 5

// Registry creates and looks up participants and manages volunteer
// assignments.
type Registry struct {
	db *gorm.DB
}

// Register is idempotent: a known telegram ID returns the existing row with
// no mutation. A new one gets a unique 5-digit code, a call-sign and the
// paired contest record, all in one transaction. Unique indexes on code and
// call-sign make issuance race-safe: a concurrent insert of the same code
// fails the transaction and the whole attempt is retried with fresh values.
func (r *Registry) Register(telegramID int64, username, tag string) (*models.Participant, error) {
	if existing, err := r.ByTelegramID(telegramID); err == nil {
		return existing, nil
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	if tag == "" && username != "" {
		tag = "@" + username
	}

	var created models.Participant
	var lastErr error
	for attempt := 0; attempt < registerAttempts; attempt++ {
		err := r.db.Transaction(func(tx *gorm.DB) error {
			// Another registration may have won the race for this ID.
			var dup models.Participant
			if err := tx.Where("telegram_id = ?", telegramID).First(&dup).Error; err == nil {
				created = dup
				return nil
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			callSign, err := nextCallSign(tx)
			if err != nil {
				return err
			}

			p := models.Participant{
				TelegramID: telegramID,
				Username:   username,
				Tag:        tag,
				UniqueCode: generateUniqueCode(),
				CallSign:   callSign,
				Role:       models.RoleParticipant,
			}
			if err := tx.Create(&p).Error; err != nil {
				return err
			}

			rec := models.ContestRecord{
				ParticipantID: p.ID,
				Tag:           p.Tag,
				CallSign:      p.CallSign,
			}
			if err := tx.Create(&rec).Error; err != nil {
				return err
			}

			created = p
			return nil
		})
		if err == nil {
			return &created, nil
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			lastErr = err
			continue
		}
		return nil, storageErr(err)
	}
	return nil, storageErr(fmt.Errorf("не удалось выдать уникальный код: %v", lastErr))
}

func generateUniqueCode() string {
	digits := make([]byte, 5)
	for i := range digits {
		digits[i] = byte('0' + rand.Intn(10))
	}
	return string(digits)
}

// nextCallSign picks a random animal and the smallest unused suffix for it,
// starting at 1.
func nextCallSign(tx *gorm.DB) (string, error) {
	animal := util.NormalizeCallSign(animals[rand.Intn(len(animals))])

	var taken []string
	if err := tx.Model(&models.Participant{}).
		Where("call_sign LIKE ?", animal+"#%").
		Pluck("call_sign", &taken).Error; err != nil {
		return "", err
	}
	used := make(map[string]bool, len(taken))
	for _, cs := range taken {
		used[cs] = true
	}
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s#%d", animal, n)
		if !used[candidate] {
			return candidate, nil
		}
	}
}

func (r *Registry) ByTelegramID(telegramID int64) (*models.Participant, error) {
	var p models.Participant
	if err := r.db.Where("telegram_id = ?", telegramID).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *Registry) RoleOf(telegramID int64) (models.Role, bool) {
	p, err := r.ByTelegramID(telegramID)
	if err != nil {
		return "", false
	}
	return p.Role, true
}

// FindByCodeOrCallSign resolves a command target: an exact unique code or an
// exact normalized call-sign.
func (r *Registry) FindByCodeOrCallSign(term string) (*models.Participant, error) {
	term = util.NormalizeCallSign(term)
	var p models.Participant
	if err := r.db.Where("unique_code = ? OR call_sign = ?", term, term).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// Search matches the normalized term as a substring of either the unique
// code or the call-sign.
func (r *Registry) Search(term string, limit int) ([]models.Participant, error) {
	term = util.NormalizeCallSign(term)
	pattern := "%" + strings.ReplaceAll(term, "%", "") + "%"
	var out []models.Participant
	err := r.db.
		Where("unique_code LIKE ? OR call_sign LIKE ?", pattern, pattern).
		Order("id ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, storageErr(err)
	}
	return out, nil
}

// EnsureOrganizer grants the organizer role to a configured organizer ID.
// Roles are otherwise only changed by organizer actions.
func (r *Registry) EnsureOrganizer(telegramID int64) error {
	err := r.db.Model(&models.Participant{}).
		Where("telegram_id = ? AND role <> ?", telegramID, models.RoleOrganizer).
		Update("role", models.RoleOrganizer).Error
	if err != nil {
		return storageErr(err)
	}
	return nil
}

// Promote makes the target a volunteer in the given group, replacing any
// previous assignment, and records who did it.
func (r *Registry) Promote(actorID int64, target *models.Participant, group models.Group) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Participant{}).
			Where("id = ?", target.ID).
			Update("role", models.RoleVolunteer).Error; err != nil {
			return err
		}
		if err := tx.Where("participant_id = ?", target.ID).
			Delete(&models.VolunteerAssignment{}).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.VolunteerAssignment{
			ParticipantID: target.ID,
			Group:         group,
		}).Error; err != nil {
			return err
		}
		return tx.Create(&models.AuditEntry{
			ActorID: actorID,
			Action:  fmt.Sprintf("Добавлен волонтёр %s (%s) в группу %s", target.CallSign, target.UniqueCode, group),
		}).Error
	})
	if err != nil {
		return storageErr(err)
	}
	return nil
}

// Demote returns the target to the participant role and removes the
// volunteer assignment.
func (r *Registry) Demote(actorID int64, target *models.Participant) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Participant{}).
			Where("id = ?", target.ID).
			Update("role", models.RoleParticipant).Error; err != nil {
			return err
		}
		if err := tx.Where("participant_id = ?", target.ID).
			Delete(&models.VolunteerAssignment{}).Error; err != nil {
			return err
		}
		return tx.Create(&models.AuditEntry{
			ActorID: actorID,
			Action:  fmt.Sprintf("Снята роль волонтёра у %s (%s)", target.CallSign, target.UniqueCode),
		}).Error
	})
	if err != nil {
		return storageErr(err)
	}
	return nil
}

// GroupOf returns the volunteer group of the given actor.
func (r *Registry) GroupOf(telegramID int64) (models.Group, error) {
	p, err := r.ByTelegramID(telegramID)
	if err != nil {
		return "", err
	}
	var a models.VolunteerAssignment
	if err := r.db.Where("participant_id = ?", p.ID).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", models.ErrGroupNotAssigned
		}
		return "", storageErr(err)
	}
	return a.Group, nil
}

// VolunteerInfo is a roster row.
type VolunteerInfo struct {
	Participant models.Participant
	Group       models.Group
}

// Volunteers returns the roster ordered by group, then call-sign.
func (r *Registry) Volunteers() ([]VolunteerInfo, error) {
	var assignments []models.VolunteerAssignment
	if err := r.db.Order("`group` ASC").Find(&assignments).Error; err != nil {
		return nil, storageErr(err)
	}
	var out []VolunteerInfo
	for _, a := range assignments {
		var p models.Participant
		if err := r.db.First(&p, a.ParticipantID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, storageErr(err)
		}
		if p.Role != models.RoleVolunteer {
			continue
		}
		out = append(out, VolunteerInfo{Participant: p, Group: a.Group})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		return out[i].Participant.CallSign < out[j].Participant.CallSign
	})
	return out, nil
}
