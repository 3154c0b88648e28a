package tgbot

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"festival-bot/internal/config"
	"festival-bot/internal/models"
	"festival-bot/internal/store"
)

type transportCall struct {
	kind      string // send / photo / edit / delete / ack
	chatID    int64
	messageID int
	text      string
	kb        *tgbotapi.InlineKeyboardMarkup
}

type fakeTransport struct {
	nextID int
	calls  []transportCall
}

func (f *fakeTransport) SendText(chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) (int, error) {
	f.nextID++
	f.calls = append(f.calls, transportCall{kind: "send", chatID: chatID, messageID: 1000 + f.nextID, text: text, kb: kb})
	return 1000 + f.nextID, nil
}

func (f *fakeTransport) SendPhoto(chatID int64, photo []byte, caption string, kb *tgbotapi.InlineKeyboardMarkup) (int, error) {
	f.nextID++
	f.calls = append(f.calls, transportCall{kind: "photo", chatID: chatID, messageID: 1000 + f.nextID, text: caption, kb: kb})
	return 1000 + f.nextID, nil
}

func (f *fakeTransport) EditText(chatID int64, messageID int, text string, kb *tgbotapi.InlineKeyboardMarkup) error {
	f.calls = append(f.calls, transportCall{kind: "edit", chatID: chatID, messageID: messageID, text: text, kb: kb})
	return nil
}

func (f *fakeTransport) DeleteMessage(chatID int64, messageID int) error {
	f.calls = append(f.calls, transportCall{kind: "delete", chatID: chatID, messageID: messageID})
	return nil
}

func (f *fakeTransport) AckCallback(callbackID string) error {
	f.calls = append(f.calls, transportCall{kind: "ack"})
	return nil
}

func (f *fakeTransport) lastOfKind(kind string) *transportCall {
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].kind == kind {
			return &f.calls[i]
		}
	}
	return nil
}

type fakeAssets struct{ fail bool }

func (f fakeAssets) Name() string { return "fake" }

func (f fakeAssets) Load(string) ([]byte, error) {
	if f.fail {
		return nil, models.ErrAssetUnavailable
	}
	return []byte("jpeg-bytes"), nil
}

func newTestApp(t *testing.T) (*App, *fakeTransport, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.Open() error: %v", err)
	}
	log := logrus.New()
	log.SetOutput(io.Discard)
	cfg := config.Config{
		OrganizerTGIDs:    map[int64]bool{1: true},
		ExportTokenSecret: "secret",
		HTTPAddr:          ":8080",
	}
	tr := &fakeTransport{}
	return NewWithTransport(cfg, log, st, fakeAssets{}, tr), tr, st
}

var nextInboundID = 1

func inbound(userID int64, text string) *tgbotapi.Message {
	nextInboundID++
	return &tgbotapi.Message{
		MessageID: nextInboundID,
		From:      &tgbotapi.User{ID: userID, UserName: fmt.Sprintf("user%d", userID)},
		Chat:      &tgbotapi.Chat{ID: userID},
		Text:      text,
	}
}

func callback(userID int64, data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: userID, UserName: fmt.Sprintf("user%d", userID)},
		Message: &tgbotapi.Message{MessageID: 1, Chat: &tgbotapi.Chat{ID: userID}},
		Data:    data,
	}
}

func buttonData(t *testing.T, kb *tgbotapi.InlineKeyboardMarkup, label string) string {
	t.Helper()
	if kb == nil {
		t.Fatalf("no keyboard rendered")
	}
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			if btn.Text == label && btn.CallbackData != nil {
				return *btn.CallbackData
			}
		}
	}
	t.Fatalf("button %q not found", label)
	return ""
}

// TestContestScenario walks the whole flow: registration, volunteer
// promotion, search, mark, leaderboard, undo.
func TestContestScenario(t *testing.T) {
	app, tr, st := newTestApp(t)

	// A participant, a future volunteer and the organizer check in.
	app.HandleMessage(inbound(100, "/start"))
	app.HandleMessage(inbound(200, "/start"))
	app.HandleMessage(inbound(1, "/start"))

	participant, err := st.Registry.ByTelegramID(100)
	if err != nil {
		t.Fatalf("participant missing: %v", err)
	}
	volunteer, err := st.Registry.ByTelegramID(200)
	if err != nil {
		t.Fatalf("volunteer missing: %v", err)
	}
	if role, _ := st.Registry.RoleOf(1); role != models.RoleOrganizer {
		t.Fatalf("configured organizer has role %q", role)
	}

	// Organizer assigns the volunteer to group А.
	app.HandleMessage(inbound(1, "/add_volunteer "+volunteer.UniqueCode+" А"))
	confirm := tr.lastOfKind("edit")
	if !strings.Contains(confirm.text, "Успешно добавлен волонтёр") {
		t.Fatalf("add_volunteer confirmation missing, got %q", confirm.text)
	}
	if g, err := st.Registry.GroupOf(200); err != nil || g != models.GroupA {
		t.Fatalf("volunteer group = %q, %v", g, err)
	}

	// Volunteer searches for the participant by code fragment.
	app.HandleMessage(inbound(200, participant.UniqueCode[:4]))
	results := tr.lastOfKind("edit")
	if !strings.Contains(results.text, "Выберите пользователя") {
		t.Fatalf("search results missing, got %q", results.text)
	}
	markLabel := fmt.Sprintf("❌ %s (%s)", participant.CallSign, participant.UniqueCode)
	markData := buttonData(t, results.kb, markLabel)

	// Volunteer marks the participant; group А toggles condition 1.
	app.HandleCallback(callback(200, markData))
	marked := tr.lastOfKind("edit")
	if !strings.Contains(marked.text, "Успешно отмечена активность") {
		t.Fatalf("mark confirmation missing, got %q", marked.text)
	}
	flags, completed, err := st.Ledger.Progress(participant.ID)
	if err != nil {
		t.Fatalf("Progress() error: %v", err)
	}
	if flags != [models.ConditionCount]bool{true, false, false} || completed != 1 {
		t.Fatalf("progress = %v/%d, want condition1 only", flags, completed)
	}

	// The leaderboard shows the participant at 1.
	app.HandleCallback(callback(1, Action{Kind: ActLeaderboard}.Encode()))
	board := tr.lastOfKind("edit")
	if !strings.Contains(board.text, participant.CallSign) || !strings.Contains(board.text, "1/3") {
		t.Fatalf("leaderboard missing participant at 1/3, got %q", board.text)
	}

	// Undo straight from the rendered confirmation payload.
	undoData := buttonData(t, marked.kb, "❌ Отмена отметки")
	app.HandleCallback(callback(200, undoData))
	flags, completed, err = st.Ledger.Progress(participant.ID)
	if err != nil {
		t.Fatalf("Progress() error: %v", err)
	}
	if completed != 0 || flags != [models.ConditionCount]bool{} {
		t.Fatalf("undo did not invert the mark: %v/%d", flags, completed)
	}
}

func TestStartTwiceKeepsOneHome(t *testing.T) {
	app, tr, st := newTestApp(t)

	app.HandleMessage(inbound(100, "/start"))
	first, _, _ := st.Sessions.HomeRef(100)
	app.HandleMessage(inbound(100, "/start"))
	second, ok, err := st.Sessions.HomeRef(100)
	if err != nil || !ok {
		t.Fatalf("HomeRef() = ok=%v err=%v", ok, err)
	}
	if second == first {
		t.Fatalf("second /start reused the old home message")
	}
	latest := tr.lastOfKind("send")
	if latest.messageID != second {
		t.Errorf("authoritative home = %d, latest sent = %d", second, latest.messageID)
	}
}

func TestMapSlotOccupiedUntilReturn(t *testing.T) {
	app, tr, _ := newTestApp(t)
	app.HandleMessage(inbound(100, "/start"))

	app.HandleCallback(callback(100, Action{Kind: ActGetMap}.Encode()))
	photo := tr.lastOfKind("photo")
	if photo == nil {
		t.Fatalf("map photo was not sent")
	}

	// A second map while one is attached renders the occupied-slot error
	// and takes the extra photo back down.
	app.HandleCallback(callback(100, Action{Kind: ActGetMap}.Encode()))
	orphan := tr.lastOfKind("photo")
	if orphan.messageID == photo.messageID {
		t.Fatalf("second map photo was not sent")
	}
	if edit := tr.lastOfKind("edit"); !strings.Contains(edit.text, "уже открыто") {
		t.Fatalf("expected slot-occupied view, got %q", edit.text)
	}
	if del := tr.lastOfKind("delete"); del == nil || del.messageID != orphan.messageID {
		t.Fatalf("orphan photo was not deleted, got %+v", del)
	}

	// Return to main frees the slot.
	app.HandleCallback(callback(100, Action{Kind: ActReturnToMain}.Encode()))
	app.HandleCallback(callback(100, Action{Kind: ActGetMap}.Encode()))
	if edit := tr.lastOfKind("edit"); !strings.Contains(edit.text, "Карта доступна внизу") {
		t.Fatalf("map did not reopen after return-to-main, got %q", edit.text)
	}
}

func TestMapAssetFallback(t *testing.T) {
	app, tr, _ := newTestApp(t)
	app.assets = fakeAssets{fail: true}

	app.HandleMessage(inbound(100, "/start"))
	app.HandleCallback(callback(100, Action{Kind: ActGetMap}.Encode()))

	if photo := tr.lastOfKind("photo"); photo != nil {
		t.Fatalf("photo sent despite unavailable asset")
	}
	if edit := tr.lastOfKind("edit"); !strings.Contains(edit.text, "Карта с активностями") {
		t.Fatalf("text fallback missing, got %q", edit.text)
	}
}

func TestParticipantCannotMark(t *testing.T) {
	app, tr, st := newTestApp(t)
	app.HandleMessage(inbound(100, "/start"))
	app.HandleMessage(inbound(300, "/start"))
	target, _ := st.Registry.ByTelegramID(300)

	app.HandleMessage(inbound(100, "/mark "+target.UniqueCode))
	if edit := tr.lastOfKind("edit"); !strings.Contains(edit.text, "нет доступа") {
		t.Fatalf("expected permission-denied view, got %q", edit.text)
	}
	if _, completed, _ := st.Ledger.Progress(target.ID); completed != 0 {
		t.Fatalf("denied mark still mutated the ledger")
	}
}

func TestVolunteerLimitedToOwnGroupCondition(t *testing.T) {
	app, _, st := newTestApp(t)
	app.HandleMessage(inbound(100, "/start"))
	app.HandleMessage(inbound(200, "/start"))
	app.HandleMessage(inbound(1, "/start"))

	target, _ := st.Registry.ByTelegramID(100)
	volunteer, _ := st.Registry.ByTelegramID(200)
	app.HandleMessage(inbound(1, "/add_volunteer "+volunteer.UniqueCode+" Б"))

	// The volunteer's /mark takes no group argument; it lands on the
	// group's own condition (Б → 2) regardless of what they might want.
	app.HandleMessage(inbound(200, "/mark "+target.UniqueCode))
	flags, _, err := st.Ledger.Progress(target.ID)
	if err != nil {
		t.Fatalf("Progress() error: %v", err)
	}
	if flags != [models.ConditionCount]bool{false, true, false} {
		t.Fatalf("volunteer in Б marked %v, want condition2 only", flags)
	}
}

func TestOrganizerMarksExplicitGroup(t *testing.T) {
	app, tr, st := newTestApp(t)
	app.HandleMessage(inbound(100, "/start"))
	app.HandleMessage(inbound(1, "/start"))
	target, _ := st.Registry.ByTelegramID(100)

	// Arity is two for the organizer; one argument renders usage.
	app.HandleMessage(inbound(1, "/mark "+target.UniqueCode))
	if edit := tr.lastOfKind("edit"); !strings.Contains(edit.text, "Неверный формат") {
		t.Fatalf("expected usage view, got %q", edit.text)
	}

	app.HandleMessage(inbound(1, "/mark "+target.UniqueCode+" В"))
	flags, _, err := st.Ledger.Progress(target.ID)
	if err != nil {
		t.Fatalf("Progress() error: %v", err)
	}
	if flags != [models.ConditionCount]bool{false, false, true} {
		t.Fatalf("organizer mark with В set %v, want condition3", flags)
	}

	// Unmark round-trips it.
	app.HandleMessage(inbound(1, "/unmark "+target.UniqueCode+" В"))
	if _, completed, _ := st.Ledger.Progress(target.ID); completed != 0 {
		t.Fatalf("unmark did not clear the flag")
	}
}

func TestCommandWithoutHomePointsAtStart(t *testing.T) {
	app, tr, _ := newTestApp(t)

	app.HandleMessage(inbound(500, "/mark 12345"))
	sent := tr.lastOfKind("send")
	if sent == nil || !strings.Contains(sent.text, "/start") {
		t.Fatalf("expected init hint, got %+v", sent)
	}
}

func TestUndoAddVolunteerFromPayload(t *testing.T) {
	app, tr, st := newTestApp(t)
	app.HandleMessage(inbound(200, "/start"))
	app.HandleMessage(inbound(1, "/start"))
	volunteer, _ := st.Registry.ByTelegramID(200)

	app.HandleMessage(inbound(1, "/add_volunteer "+volunteer.UniqueCode+" А"))
	confirm := tr.lastOfKind("edit")
	undoData := buttonData(t, confirm.kb, "❌ Отмена добавления")

	app.HandleCallback(callback(1, undoData))
	if role, _ := st.Registry.RoleOf(200); role != models.RoleParticipant {
		t.Fatalf("undo left role %q", role)
	}
	if _, err := st.Registry.GroupOf(200); err == nil {
		t.Fatalf("undo left the volunteer assignment in place")
	}
}

func TestExportCSV(t *testing.T) {
	app, _, st := newTestApp(t)
	app.HandleMessage(inbound(100, "/start"))
	p, _ := st.Registry.ByTelegramID(100)
	if err := st.Ledger.Mark(p.ID, models.Condition1); err != nil {
		t.Fatalf("Mark() error: %v", err)
	}

	csv, err := app.BuildContestCSV()
	if err != nil {
		t.Fatalf("BuildContestCSV() error: %v", err)
	}
	if !strings.HasPrefix(csv, "call_sign,tag,") {
		t.Errorf("csv header missing: %q", csv)
	}
	if !strings.Contains(csv, p.CallSign) || !strings.Contains(csv, "true,false,false,1") {
		t.Errorf("csv row missing participant progress: %q", csv)
	}
}
