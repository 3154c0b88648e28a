package tgbot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"festival-bot/internal/assets"
	"festival-bot/internal/authz"
	"festival-bot/internal/config"
	"festival-bot/internal/models"
	"festival-bot/internal/store"
	"festival-bot/internal/util"
)

const (
	searchMinLength  = 2
	searchMaxResults = 5
	leaderboardLimit = 10
)

// App is the conversation controller: it maps every inbound event to a
// permission check, a data operation, a rendered view and a session-store
// update, and never lets an error leave a chat without a rendered response.
type App struct {
	cfg    config.Config
	log    *logrus.Logger
	bot    *tgbotapi.BotAPI
	tr     Transport
	st     *store.Store
	assets assets.Provider
}

func New(cfg config.Config, log *logrus.Logger, st *store.Store, provider assets.Provider) (*App, error) {
	b, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, err
	}
	b.Debug = false
	return &App{
		cfg:    cfg,
		log:    log,
		bot:    b,
		tr:     newTelegramTransport(b),
		st:     st,
		assets: provider,
	}, nil
}

// NewWithTransport wires an explicit transport; used by tests.
func NewWithTransport(cfg config.Config, log *logrus.Logger, st *store.Store, provider assets.Provider, tr Transport) *App {
	return &App{cfg: cfg, log: log, st: st, assets: provider, tr: tr}
}

func (a *App) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd := <-updates:
			if upd.Message != nil {
				a.HandleMessage(upd.Message)
			} else if upd.CallbackQuery != nil {
				a.HandleCallback(upd.CallbackQuery)
			}
		}
	}
}

// ---------- Message handling ----------

func (a *App) HandleMessage(m *tgbotapi.Message) {
	chatID := m.Chat.ID
	userID := m.From.ID
	txt := strings.TrimSpace(m.Text)

	var err error
	switch {
	case strings.HasPrefix(txt, "/start"):
		err = a.handleStart(m)
	case strings.HasPrefix(txt, "/add_volunteer"):
		err = a.handleAddVolunteer(m, commandArgs(txt))
	case strings.HasPrefix(txt, "/mark"):
		err = a.handleToggle(m, commandArgs(txt), true)
	case strings.HasPrefix(txt, "/unmark"):
		err = a.handleToggle(m, commandArgs(txt), false)
	default:
		err = a.handleSearch(m)
	}
	if err != nil {
		a.renderError(chatID, userID, err)
	}
}

func commandArgs(txt string) []string {
	fields := strings.Fields(txt)
	if len(fields) <= 1 {
		return nil
	}
	return fields[1:]
}

func (a *App) handleStart(m *tgbotapi.Message) error {
	chatID := m.Chat.ID
	userID := m.From.ID
	username := m.From.UserName

	p, err := a.st.Registry.Register(userID, username, tagFor(username))
	if err != nil {
		return err
	}
	if a.cfg.OrganizerTGIDs[userID] && p.Role != models.RoleOrganizer {
		if err := a.st.Registry.EnsureOrganizer(userID); err != nil {
			return err
		}
		p.Role = models.RoleOrganizer
	}
	a.audit(userID, "Использована команда /start")

	completed := 0
	if p.Role == models.RoleParticipant {
		if _, c, err := a.st.Ledger.Progress(p.ID); err == nil {
			completed = c
		}
	}

	text, kb := homeView(p, completed)
	msgID, err := a.tr.SendText(chatID, text, kb)
	if err != nil {
		return err
	}
	if err := a.st.Sessions.OpenHome(chatID, msgID); err != nil {
		return err
	}
	a.deleteQuiet(chatID, m.MessageID)
	return nil
}

func tagFor(username string) string {
	if username == "" {
		return ""
	}
	return "@" + username
}

func (a *App) handleAddVolunteer(m *tgbotapi.Message, args []string) error {
	chatID := m.Chat.ID
	userID := m.From.ID
	defer a.deleteQuiet(chatID, m.MessageID)

	homeID, ok, err := a.st.Sessions.HomeRef(chatID)
	if err != nil {
		return err
	}
	if !ok {
		return a.sendNoHome(chatID)
	}

	role, _ := a.st.Registry.RoleOf(userID)
	if err := authz.Can(role, authz.ActionManageVolunteers); err != nil {
		return err
	}
	if len(args) != 2 {
		return a.tr.EditText(chatID, homeID, "❌ Неверный формат команды.\n"+promptAddText(), backKeyboard())
	}

	group, err := models.ParseGroup(args[1])
	if err != nil {
		return a.tr.EditText(chatID, homeID,
			fmt.Sprintf("❌ Неверная группа. Доступные группы: %s", groupList()), backKeyboard())
	}

	target, err := a.st.Registry.FindByCodeOrCallSign(args[0])
	if err != nil {
		return err
	}
	if err := a.st.Registry.Promote(userID, target, group); err != nil {
		return err
	}

	text, kb := addVolunteerConfirmView(target, group)
	return a.tr.EditText(chatID, homeID, text, kb)
}

// handleToggle serves both /mark and /unmark. Arity depends on role: a
// volunteer is bound to their group's condition, an organizer names the
// group explicitly.
func (a *App) handleToggle(m *tgbotapi.Message, args []string, mark bool) error {
	chatID := m.Chat.ID
	userID := m.From.ID
	defer a.deleteQuiet(chatID, m.MessageID)

	homeID, ok, err := a.st.Sessions.HomeRef(chatID)
	if err != nil {
		return err
	}
	if !ok {
		return a.sendNoHome(chatID)
	}

	role, _ := a.st.Registry.RoleOf(userID)
	if err := authz.Can(role, authz.ActionToggleCondition); err != nil {
		return err
	}

	wantArgs := 1
	if role == models.RoleOrganizer {
		wantArgs = 2
	}
	if len(args) != wantArgs {
		usage := promptMarkText(role)
		if !mark {
			usage = promptUnmarkText(role)
		}
		return a.tr.EditText(chatID, homeID, "❌ Неверный формат команды.\n"+usage, backKeyboard())
	}

	cond, err := a.conditionFor(userID, role, args)
	if err != nil {
		return err
	}

	target, err := a.st.Registry.FindByCodeOrCallSign(args[0])
	if err != nil {
		return err
	}

	if mark {
		if err := a.st.Ledger.Mark(target.ID, cond); err != nil {
			return err
		}
		a.audit(userID, fmt.Sprintf("%s отметил активность «%s» для пользователя %s",
			role, activityName(cond), target.CallSign))
		text, kb := markConfirmView(target, cond)
		return a.tr.EditText(chatID, homeID, text, kb)
	}

	if err := a.st.Ledger.Unmark(target.ID, cond); err != nil {
		return err
	}
	a.audit(userID, fmt.Sprintf("%s отменил отметку активности «%s» для пользователя %s",
		role, activityName(cond), target.CallSign))
	text, kb := unmarkConfirmView(target, cond)
	return a.tr.EditText(chatID, homeID, text, kb)
}

func (a *App) conditionFor(userID int64, role models.Role, args []string) (models.Condition, error) {
	var ownGroup models.Group
	hasOwn := false
	if role == models.RoleVolunteer {
		g, err := a.st.Registry.GroupOf(userID)
		if err != nil && !errors.Is(err, models.ErrGroupNotAssigned) {
			return 0, err
		}
		if err == nil {
			ownGroup, hasOwn = g, true
		}
	}

	var explicit models.Group
	hasExplicit := false
	if role == models.RoleOrganizer && len(args) >= 2 {
		g, err := models.ParseGroup(args[1])
		if err != nil {
			return 0, err
		}
		explicit, hasExplicit = g, true
	}

	return authz.ConditionFor(role, ownGroup, hasOwn, explicit, hasExplicit)
}

// handleSearch is the volunteer free-text search over codes and call-signs.
// It stays silent for everyone else, like any stray text.
func (a *App) handleSearch(m *tgbotapi.Message) error {
	chatID := m.Chat.ID
	userID := m.From.ID

	role, ok := a.st.Registry.RoleOf(userID)
	if !ok || role != models.RoleVolunteer {
		return nil
	}
	query := util.NormalizeCallSign(m.Text)
	if len([]rune(query)) < searchMinLength {
		return nil
	}

	homeID, ok, err := a.st.Sessions.HomeRef(chatID)
	if err != nil {
		return err
	}
	if !ok {
		return a.sendNoHome(chatID)
	}

	group, err := a.st.Registry.GroupOf(userID)
	if err != nil {
		if errors.Is(err, models.ErrGroupNotAssigned) {
			return nil
		}
		return err
	}
	cond := models.GroupToCondition[group]

	results, err := a.st.Registry.Search(query, searchMaxResults)
	if err != nil {
		return err
	}

	matches := make([]searchMatch, 0, len(results))
	for _, p := range results {
		marked, err := a.st.Ledger.IsMarked(p.ID, cond)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			return err
		}
		matches = append(matches, searchMatch{Participant: p, Marked: marked, Cond: cond})
	}

	text, kb := searchResultsView(matches)
	if err := a.tr.EditText(chatID, homeID, text, kb); err != nil {
		return err
	}
	a.deleteQuiet(chatID, m.MessageID)
	return nil
}

// ---------- Callback handling ----------

func (a *App) HandleCallback(q *tgbotapi.CallbackQuery) {
	chatID := q.Message.Chat.ID
	userID := q.From.ID

	if err := a.tr.AckCallback(q.ID); err != nil {
		a.log.WithError(err).Debug("ack callback")
	}

	if err := a.dispatchCallback(chatID, userID, q.Data); err != nil {
		a.renderError(chatID, userID, err)
	}
}

func (a *App) dispatchCallback(chatID, userID int64, data string) error {
	homeID, ok, err := a.st.Sessions.HomeRef(chatID)
	if err != nil {
		return err
	}
	if !ok {
		return a.sendNoHome(chatID)
	}

	act, err := DecodeAction(data)
	if err != nil {
		return err
	}

	role, _ := a.st.Registry.RoleOf(userID)

	switch act.Kind {
	case ActReturnToMain:
		return a.returnToMain(chatID, userID, homeID)

	case ActShowStatus:
		if err := authz.Can(role, authz.ActionViewOwnStatus); err != nil {
			return err
		}
		p, err := a.st.Registry.ByTelegramID(userID)
		if err != nil {
			return err
		}
		flags, completed, err := a.st.Ledger.Progress(p.ID)
		if err != nil {
			return err
		}
		text, kb := statusView(p, flags, completed)
		return a.tr.EditText(chatID, homeID, text, kb)

	case ActGetMap:
		if err := authz.Can(role, authz.ActionViewMap); err != nil {
			return err
		}
		p, err := a.st.Registry.ByTelegramID(userID)
		if err != nil {
			return err
		}
		flags, _, err := a.st.Ledger.Progress(p.ID)
		if err != nil {
			return err
		}
		return a.sendEphemeral(chatID, homeID, store.SlotMap, assets.AssetMap,
			mapCaption(flags), "🔽 Карта доступна внизу.")

	case ActGetEvent:
		if err := authz.Can(role, authz.ActionViewEvent); err != nil {
			return err
		}
		return a.sendEphemeral(chatID, homeID, store.SlotEvent, assets.AssetEvent,
			eventCaption, "ℹ️ Информация о мероприятии доступна внизу.")

	case ActLeaderboard:
		if err := authz.Can(role, authz.ActionViewLeaderboard); err != nil {
			return err
		}
		a.audit(userID, "Запрошена статистика конкурса")
		entries, err := a.st.Ledger.Leaderboard(leaderboardLimit)
		if err != nil {
			return err
		}
		text, kb := leaderboardView(entries, a.ExportURL())
		return a.tr.EditText(chatID, homeID, text, kb)

	case ActVolunteers:
		if err := authz.Can(role, authz.ActionManageVolunteers); err != nil {
			return err
		}
		roster, err := a.st.Registry.Volunteers()
		if err != nil {
			return err
		}
		counts := map[models.Group]int64{}
		for _, g := range models.Groups() {
			n, err := a.st.Ledger.CountMarked(models.GroupToCondition[g])
			if err != nil {
				return err
			}
			counts[g] = n
		}
		text, kb := rosterView(roster, counts)
		return a.tr.EditText(chatID, homeID, text, kb)

	case ActVolunteerInfo:
		if err := authz.Can(role, authz.ActionManageVolunteers); err != nil {
			return err
		}
		v, err := a.st.Registry.FindByCodeOrCallSign(act.Code)
		if err != nil {
			return err
		}
		group, err := a.st.Registry.GroupOf(v.TelegramID)
		if err != nil {
			return err
		}
		marks, err := a.st.Ledger.CountMarked(models.GroupToCondition[group])
		if err != nil {
			return err
		}
		text, kb := volunteerInfoView(v, group, marks)
		return a.tr.EditText(chatID, homeID, text, kb)

	case ActRemoveVol:
		if err := authz.Can(role, authz.ActionManageVolunteers); err != nil {
			return err
		}
		v, err := a.st.Registry.FindByCodeOrCallSign(act.Code)
		if err != nil {
			return err
		}
		if err := a.st.Registry.Demote(userID, v); err != nil {
			return err
		}
		kb := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("↩️ К списку волонтёров", Action{Kind: ActVolunteers}.Encode()),
			),
			backRow(),
		)
		return a.tr.EditText(chatID, homeID,
			fmt.Sprintf("✅ Пользователь %s успешно снят с роли волонтёра", v.CallSign), &kb)

	case ActPromptAdd:
		if err := authz.Can(role, authz.ActionManageVolunteers); err != nil {
			return err
		}
		return a.tr.EditText(chatID, homeID, promptAddText(), backKeyboard())

	case ActPromptMark:
		if err := authz.Can(role, authz.ActionToggleCondition); err != nil {
			return err
		}
		return a.tr.EditText(chatID, homeID, promptMarkText(role), backKeyboard())

	case ActPromptUnmark:
		if err := authz.Can(role, authz.ActionToggleCondition); err != nil {
			return err
		}
		return a.tr.EditText(chatID, homeID, promptUnmarkText(role), backKeyboard())

	case ActMarkUser:
		if err := authz.Can(role, authz.ActionToggleCondition); err != nil {
			return err
		}
		group, err := a.st.Registry.GroupOf(userID)
		if err != nil {
			return err
		}
		cond := models.GroupToCondition[group]
		target, err := a.st.Registry.FindByCodeOrCallSign(act.Code)
		if err != nil {
			return err
		}
		if err := a.st.Ledger.Mark(target.ID, cond); err != nil {
			return err
		}
		a.audit(userID, fmt.Sprintf("Волонтёр отметил активность «%s» для пользователя %s (%s)",
			activityName(cond), target.CallSign, target.UniqueCode))
		text, kb := markConfirmView(target, cond)
		return a.tr.EditText(chatID, homeID, text, kb)

	case ActUnmarkUser:
		if err := authz.Can(role, authz.ActionToggleCondition); err != nil {
			return err
		}
		target, err := a.st.Registry.FindByCodeOrCallSign(act.Code)
		if err != nil {
			return err
		}
		if err := a.st.Ledger.Unmark(target.ID, act.Cond); err != nil {
			return err
		}
		a.audit(userID, fmt.Sprintf("Отменена отметка активности «%s» для пользователя %s (%s)",
			activityName(act.Cond), target.CallSign, target.UniqueCode))
		text, kb := unmarkConfirmView(target, act.Cond)
		return a.tr.EditText(chatID, homeID, text, kb)

	case ActUndoMark:
		// The payload alone names the condition and target; no controller
		// memory is consulted.
		if err := authz.Can(role, authz.ActionToggleCondition); err != nil {
			return err
		}
		target, err := a.st.Registry.FindByCodeOrCallSign(act.Code)
		if err != nil {
			return err
		}
		if err := a.st.Ledger.Unmark(target.ID, act.Cond); err != nil {
			return err
		}
		a.audit(userID, fmt.Sprintf("Отменена отметка активности «%s» для пользователя %s",
			activityName(act.Cond), target.CallSign))
		return a.tr.EditText(chatID, homeID, "✅ Действие успешно отменено.", backKeyboard())

	case ActUndoAddVol:
		if err := authz.Can(role, authz.ActionManageVolunteers); err != nil {
			return err
		}
		target, err := a.st.Registry.FindByCodeOrCallSign(act.Code)
		if err != nil {
			return err
		}
		if err := a.st.Registry.Demote(userID, target); err != nil {
			return err
		}
		a.audit(userID, fmt.Sprintf("Отменено добавление волонтёра %s в группу %s",
			target.CallSign, act.Group))
		return a.tr.EditText(chatID, homeID, "✅ Действие успешно отменено.", backKeyboard())
	}

	return fmt.Errorf("%w: действие %q", models.ErrInvalidArgument, act.Kind)
}

// returnToMain tears down the ephemeral messages and re-renders the home
// view onto the home message.
func (a *App) returnToMain(chatID, userID int64, homeID int) error {
	for _, slot := range []store.Slot{store.SlotMap, store.SlotEvent} {
		msgID, had, err := a.st.Sessions.DetachEphemeral(chatID, slot)
		if err != nil {
			return err
		}
		if had {
			if err := a.tr.DeleteMessage(chatID, msgID); err != nil {
				a.log.WithError(err).WithField("slot", slot).Debug("delete ephemeral")
			}
		}
	}

	p, err := a.st.Registry.ByTelegramID(userID)
	if err != nil {
		return err
	}
	completed := 0
	if p.Role == models.RoleParticipant {
		if _, c, err := a.st.Ledger.Progress(p.ID); err == nil {
			completed = c
		}
	}
	text, kb := homeView(p, completed)
	return a.tr.EditText(chatID, homeID, text, kb)
}

// sendEphemeral sends a photo side message for the given slot and points the
// home message at it. If the asset is unavailable the caption is rendered as
// a text fallback on the home message instead.
func (a *App) sendEphemeral(chatID int64, homeID int, slot store.Slot, asset, caption, homeNote string) error {
	photo, err := a.assets.Load(asset)
	if err != nil {
		a.log.WithError(err).WithField("asset", asset).Warn("asset unavailable")
		return a.tr.EditText(chatID, homeID, caption, backKeyboard())
	}

	msgID, err := a.tr.SendPhoto(chatID, photo, caption, backKeyboard())
	if err != nil {
		return err
	}
	if err := a.st.Sessions.AttachEphemeral(chatID, slot, msgID); err != nil {
		// The slot is still occupied; take the new message back down.
		if errors.Is(err, models.ErrSlotOccupied) {
			a.deleteQuiet(chatID, msgID)
		}
		return err
	}
	return a.tr.EditText(chatID, homeID, homeNote, nil)
}

// ---------- Shared plumbing ----------

func (a *App) sendNoHome(chatID int64) error {
	_, err := a.tr.SendText(chatID, "Ошибка: не найдено главное сообщение. Используйте /start для начала работы.", nil)
	return err
}

// renderError is the outermost boundary: every core error becomes a rendered
// view with the return-to-menu affordance. Delivery errors are logged once
// and not retried.
func (a *App) renderError(chatID, userID int64, err error) {
	if errors.Is(err, models.ErrDelivery) {
		a.log.WithError(err).WithField("chat_id", chatID).Warn("delivery failed")
		return
	}
	if errors.Is(err, models.ErrStorage) {
		a.log.WithError(err).WithField("chat_id", chatID).Error("storage failure")
	} else {
		a.log.WithError(err).WithField("chat_id", chatID).Debug("handled user error")
	}

	text := errorText(err)
	homeID, ok, herr := a.st.Sessions.HomeRef(chatID)
	if herr != nil || !ok {
		if _, serr := a.tr.SendText(chatID, text, backKeyboard()); serr != nil {
			a.log.WithError(serr).Warn("render error view")
		}
		return
	}
	if eerr := a.tr.EditText(chatID, homeID, text, backKeyboard()); eerr != nil {
		a.log.WithError(eerr).Warn("render error view")
	}
}

func (a *App) deleteQuiet(chatID int64, messageID int) {
	if err := a.tr.DeleteMessage(chatID, messageID); err != nil {
		a.log.WithError(err).Debug("delete message")
	}
}

func (a *App) audit(actorID int64, action string) {
	if err := a.st.Audit.Append(actorID, action); err != nil {
		a.log.WithError(err).Warn("audit append")
	}
}

// ExportURL is the HMAC-gated leaderboard CSV link handed to organizers.
func (a *App) ExportURL() string {
	token := util.HMACSHA256Hex(a.cfg.ExportTokenSecret, "export:contest")
	base := a.cfg.BasePublicURL
	if base == "" {
		base = "http://localhost" + a.cfg.HTTPAddr
	}
	return base + "/export/contest.csv?token=" + token
}

// BuildContestCSV renders the whole contest ledger for the export endpoint.
func (a *App) BuildContestCSV() (string, error) {
	entries, err := a.st.Ledger.Leaderboard(-1)
	if err != nil {
		return "", err
	}
	b := strings.Builder{}
	b.WriteString("call_sign,tag,condition1,condition2,condition3,completed\n")
	for _, e := range entries {
		flags := e.Record.Flags()
		b.WriteString(fmt.Sprintf("%s,%s,%t,%t,%t,%d\n",
			escapeCSV(e.Record.CallSign),
			escapeCSV(e.Record.Tag),
			flags[0], flags[1], flags[2],
			e.Completed,
		))
	}
	return b.String(), nil
}

func escapeCSV(s string) string {
	s = strings.ReplaceAll(s, `"`, `""`)
	if strings.ContainsAny(s, ",\n\r") {
		return `"` + s + `"`
	}
	return s
}
