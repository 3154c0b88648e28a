package tgbot

import (
	"fmt"
	"strconv"
	"strings"

	"festival-bot/internal/models"
)

// ActionKind tags a callback action. Undo kinds carry everything needed to
// invert the action they name, so pressing the button years after the
// confirmation was rendered still works without any controller-held memory.
type ActionKind string

const (
	ActReturnToMain  ActionKind = "main"
	ActShowStatus    ActionKind = "status"
	ActGetMap        ActionKind = "map"
	ActGetEvent      ActionKind = "event"
	ActLeaderboard   ActionKind = "stat"
	ActVolunteers    ActionKind = "vols"
	ActVolunteerInfo ActionKind = "vinfo"
	ActRemoveVol     ActionKind = "vdel"
	ActPromptAdd     ActionKind = "padd"
	ActPromptMark    ActionKind = "pmark"
	ActPromptUnmark  ActionKind = "punmark"
	ActMarkUser      ActionKind = "mark"
	ActUnmarkUser    ActionKind = "unmark"
	ActUndoMark      ActionKind = "umark"
	ActUndoAddVol    ActionKind = "uaddv"
)

const actionVersion = "1"

// Action is the typed callback payload. Code is the target's unique code;
// Cond and Group are set only by the kinds that need them.
type Action struct {
	Kind  ActionKind
	Code  string
	Cond  models.Condition
	Group models.Group
}

var groupWire = map[models.Group]string{
	models.GroupA: "A",
	models.GroupB: "B",
	models.GroupC: "C",
}

var wireGroup = map[string]models.Group{
	"A": models.GroupA,
	"B": models.GroupB,
	"C": models.GroupC,
}

// Encode packs the action into callback data. The format is versioned and
// stays well under Telegram's 64-byte callback budget.
func (a Action) Encode() string {
	return strings.Join([]string{
		actionVersion,
		string(a.Kind),
		a.Code,
		strconv.Itoa(int(a.Cond)),
		groupWire[a.Group],
	}, "|")
}

func DecodeAction(data string) (Action, error) {
	parts := strings.Split(data, "|")
	if len(parts) != 5 {
		return Action{}, fmt.Errorf("%w: callback %q", models.ErrInvalidArgument, data)
	}
	if parts[0] != actionVersion {
		return Action{}, fmt.Errorf("%w: версия callback %q", models.ErrInvalidArgument, parts[0])
	}
	cond, err := strconv.Atoi(parts[3])
	if err != nil {
		return Action{}, fmt.Errorf("%w: callback %q", models.ErrInvalidArgument, data)
	}
	return Action{
		Kind:  ActionKind(parts[1]),
		Code:  parts[2],
		Cond:  models.Condition(cond),
		Group: wireGroup[parts[4]],
	}, nil
}
