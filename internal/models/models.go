package models

import (
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleParticipant Role = "Пользователь"
	RoleVolunteer   Role = "Волонтёр"
	RoleOrganizer   Role = "Организатор"
)

// Group is a volunteer group. Each group is bound to exactly one contest
// condition it may toggle.
type Group string

const (
	GroupA Group = "А"
	GroupB Group = "Б"
	GroupC Group = "В"
)

// Condition indexes one of the three contest activities.
type Condition int

const (
	Condition1 Condition = 1
	Condition2 Condition = 2
	Condition3 Condition = 3

	ConditionCount = 3
)

func (c Condition) Valid() bool {
	return c >= 1 && c <= ConditionCount
}

// GroupToCondition maps each volunteer group to the one condition it is
// authorized to toggle.
var GroupToCondition = map[Group]Condition{
	GroupA: Condition1,
	GroupB: Condition2,
	GroupC: Condition3,
}

// ParseGroup accepts both Cyrillic and Latin spellings, case-insensitive.
func ParseGroup(s string) (Group, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "А", "A":
		return GroupA, nil
	case "Б", "B":
		return GroupB, nil
	case "В", "C":
		return GroupC, nil
	}
	return "", fmt.Errorf("%w: неизвестная группа %q", ErrInvalidArgument, s)
}

// Groups lists the valid groups in display order.
func Groups() []Group {
	return []Group{GroupA, GroupB, GroupC}
}

type Participant struct {
	ID         int64     `gorm:"primaryKey"`
	TelegramID int64     `gorm:"uniqueIndex;not null"`
	Username   string    `gorm:"size:128"`
	Tag        string    `gorm:"size:128"`
	UniqueCode string    `gorm:"size:8;uniqueIndex"`
	CallSign   string    `gorm:"size:64;uniqueIndex"`
	Role       Role      `gorm:"size:32;not null"`
	FullName   string    `gorm:"size:256"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

type VolunteerAssignment struct {
	ID            int64     `gorm:"primaryKey"`
	ParticipantID int64     `gorm:"uniqueIndex;not null"`
	Group         Group     `gorm:"size:8;not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

// ContestRecord is keyed by the stable participant ID; tag and call-sign are
// denormalized display copies.
type ContestRecord struct {
	ID            int64  `gorm:"primaryKey"`
	ParticipantID int64  `gorm:"uniqueIndex;not null"`
	Tag           string `gorm:"size:128"`
	CallSign      string `gorm:"size:64"`
	Condition1    bool   `gorm:"default:false"`
	Condition2    bool   `gorm:"default:false"`
	Condition3    bool   `gorm:"default:false"`
}

// Flags returns the condition flags indexed 0..2 for conditions 1..3.
func (r ContestRecord) Flags() [ConditionCount]bool {
	return [ConditionCount]bool{r.Condition1, r.Condition2, r.Condition3}
}

func (r ContestRecord) Completed() int {
	n := 0
	for _, f := range r.Flags() {
		if f {
			n++
		}
	}
	return n
}

// HomeSession tracks the single editable home message per chat plus the
// ephemeral map/event messages torn down on return-to-menu.
type HomeSession struct {
	ChatID         int64 `gorm:"primaryKey"`
	HomeMessageID  int   `gorm:"not null"`
	MapMessageID   int
	EventMessageID int
}

type AuditEntry struct {
	ID        int64     `gorm:"primaryKey"`
	ActorID   int64     `gorm:"index"`
	Action    string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}
