package tgbot

import (
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"festival-bot/internal/models"
	"festival-bot/internal/store"
)

var activityNames = map[models.Condition]string{
	models.Condition1: "Главная Сцена",
	models.Condition2: "Скейт Парк",
	models.Condition3: "Малая Сцена",
}

var activityLinks = map[models.Condition]string{
	models.Condition1: "https://yandex.ru/maps/-/CHVGFPpk",
	models.Condition2: "https://yandex.ru/maps/-/CHVGFTn4",
	models.Condition3: "https://yandex.ru/maps/-/CHVGFT~V",
}

func activityName(c models.Condition) string {
	if name, ok := activityNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Активность %d", c)
}

func backRow() []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔙 Вернуться в главное меню", Action{Kind: ActReturnToMain}.Encode()),
	)
}

func backKeyboard() *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(backRow())
	return &kb
}

// homeView renders the main menu for the participant's role and progress.
func homeView(p *models.Participant, completed int) (string, *tgbotapi.InlineKeyboardMarkup) {
	text := fmt.Sprintf(
		"👋 Добро пожаловать в нашего бота!\n\n🏷 Ваш позывной: %s\n🔢 Ваш код: %s",
		orUnassigned(p.CallSign), orUnassigned(p.UniqueCode),
	)

	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("О мероприятии", Action{Kind: ActGetEvent}.Encode()),
		),
	}

	switch p.Role {
	case models.RoleParticipant:
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Мой статус", Action{Kind: ActShowStatus}.Encode()),
		))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Получить карту", Action{Kind: ActGetMap}.Encode()),
		))
		if completed == models.ConditionCount {
			text += "\n🎉 Вы прошли все активности"
		} else {
			text += fmt.Sprintf("\n🎈 Вы прошли %d из %d активностей.", completed, models.ConditionCount)
		}
	case models.RoleOrganizer:
		rows = append(rows,
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Получить статистику", Action{Kind: ActLeaderboard}.Encode()),
			),
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("👥 Список волонтёров", Action{Kind: ActVolunteers}.Encode()),
			),
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Добавить волонтёра", Action{Kind: ActPromptAdd}.Encode()),
			),
		)
	}
	if p.Role == models.RoleOrganizer || p.Role == models.RoleVolunteer {
		rows = append(rows,
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Отметить условие", Action{Kind: ActPromptMark}.Encode()),
			),
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Отменить отметку", Action{Kind: ActPromptUnmark}.Encode()),
			),
		)
	}

	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return text, &kb
}

func orUnassigned(s string) string {
	if s == "" {
		return "Не назначен"
	}
	return s
}

func statusView(p *models.Participant, flags [models.ConditionCount]bool, completed int) (string, *tgbotapi.InlineKeyboardMarkup) {
	var b strings.Builder
	b.WriteString("✨ <b>Ваш текущий статус:</b>\n\n")
	fmt.Fprintf(&b, "🏷 Позывной: <code>%s</code>\n", p.CallSign)
	fmt.Fprintf(&b, "🔢 Код: <code>%s</code>\n\n", p.UniqueCode)
	fmt.Fprintf(&b, "📊 Прогресс: %d/%d активностей\n", completed, models.ConditionCount)

	for _, f := range flags {
		if f {
			b.WriteString("🟢")
		} else {
			b.WriteString("⚪")
		}
	}
	b.WriteString("\n\n<b>Статус активностей:</b>\n")
	for i, f := range flags {
		mark := "❌"
		if f {
			mark = "✅"
		}
		fmt.Fprintf(&b, "%s %s\n", mark, activityName(models.Condition(i+1)))
	}
	if completed < models.ConditionCount {
		b.WriteString("\n💡 <i>Подсказка: Нажмите кнопку «Карта активностей», чтобы увидеть расположение непройденных точек.</i>")
	} else {
		b.WriteString("\n🎉 <b>Поздравляем! Вы прошли все активности!</b>")
	}

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗺 Карта активностей", Action{Kind: ActGetMap}.Encode()),
		),
		backRow(),
	)
	return b.String(), &kb
}

// mapCaption links only the activity points the participant has not passed.
func mapCaption(flags [models.ConditionCount]bool) string {
	var links strings.Builder
	links.WriteString("\n")
	for i, f := range flags {
		if f {
			continue
		}
		c := models.Condition(i + 1)
		fmt.Fprintf(&links, "<b>%s</b> %s <a href='%s'>Показать</a>\n",
			activityName(c), strings.Repeat("-", i+1), activityLinks[c])
	}
	return fmt.Sprintf("🗺 <b>Карта с активностями:</b>\n%s", links.String())
}

const eventCaption = "ℹ️ <b>О мероприятии:</b>\nМероприятие будет проходить в формате квеста: три площадки, на каждой своя активность и волонтёр, который отмечает прохождение."

type searchMatch struct {
	Participant models.Participant
	Marked      bool
	Cond        models.Condition
}

func searchResultsView(matches []searchMatch) (string, *tgbotapi.InlineKeyboardMarkup) {
	if len(matches) == 0 {
		return "❌ Не найдено подходящих пользователей.", backKeyboard()
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(matches)+1)
	for _, m := range matches {
		status := "❌"
		action := Action{Kind: ActMarkUser, Code: m.Participant.UniqueCode}
		if m.Marked {
			status = "✅"
			action = Action{Kind: ActUnmarkUser, Code: m.Participant.UniqueCode, Cond: m.Cond}
		}
		label := fmt.Sprintf("%s %s (%s)", status, m.Participant.CallSign, m.Participant.UniqueCode)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, action.Encode()),
		))
	}
	rows = append(rows, backRow())
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return "🔍 Выберите пользователя:\n❌ - не отмечен\n✅ - отмечен", &kb
}

func markConfirmView(target *models.Participant, cond models.Condition) (string, *tgbotapi.InlineKeyboardMarkup) {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		backRow(),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Отмена отметки",
				Action{Kind: ActUndoMark, Code: target.UniqueCode, Cond: cond}.Encode()),
		),
	)
	text := fmt.Sprintf("✅ Успешно отмечена активность «%s» для пользователя %s (%s)",
		activityName(cond), target.CallSign, target.UniqueCode)
	return text, &kb
}

func unmarkConfirmView(target *models.Participant, cond models.Condition) (string, *tgbotapi.InlineKeyboardMarkup) {
	text := fmt.Sprintf("✅ Успешно отменена отметка активности «%s» для пользователя %s",
		activityName(cond), target.CallSign)
	return text, backKeyboard()
}

func addVolunteerConfirmView(target *models.Participant, group models.Group) (string, *tgbotapi.InlineKeyboardMarkup) {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		backRow(),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Отмена добавления",
				Action{Kind: ActUndoAddVol, Code: target.UniqueCode, Group: group}.Encode()),
		),
	)
	text := fmt.Sprintf("✅ Успешно добавлен волонтёр!\nПозывной: %s\nКод: %s\nГруппа: %s",
		target.CallSign, target.UniqueCode, group)
	return text, &kb
}

func rosterView(volunteers []store.VolunteerInfo, markCounts map[models.Group]int64) (string, *tgbotapi.InlineKeyboardMarkup) {
	if len(volunteers) == 0 {
		return "📝 Список волонтёров пуст.", backKeyboard()
	}
	var b strings.Builder
	b.WriteString("📋 <b>Список волонтёров:</b>\n")
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(volunteers)+1)

	var currentGroup models.Group
	for _, v := range volunteers {
		if v.Group != currentGroup {
			currentGroup = v.Group
			fmt.Fprintf(&b, "\n<b>Группа %s</b> — %s, %d отметок:\n",
				v.Group, activityName(models.GroupToCondition[v.Group]), markCounts[v.Group])
		}
		fmt.Fprintf(&b, "👤 %s (%s) - %s\n", v.Participant.CallSign, v.Participant.UniqueCode, orDash(v.Participant.FullName))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%s | %s", v.Group, v.Participant.CallSign),
				Action{Kind: ActVolunteerInfo, Code: v.Participant.UniqueCode}.Encode()),
		))
	}
	rows = append(rows, backRow())
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return b.String(), &kb
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

func volunteerInfoView(v *models.Participant, group models.Group, marks int64) (string, *tgbotapi.InlineKeyboardMarkup) {
	cond := models.GroupToCondition[group]
	var b strings.Builder
	b.WriteString("ℹ️ <b>Информация о волонтёре:</b>\n\n")
	fmt.Fprintf(&b, "🏷 Позывной: <code>%s</code>\n", v.CallSign)
	fmt.Fprintf(&b, "🔢 Код: <code>%s</code>\n", v.UniqueCode)
	fmt.Fprintf(&b, "👤 Тег: %s\n", orDash(v.Tag))
	fmt.Fprintf(&b, "📍 Группа: %s\n", group)
	fmt.Fprintf(&b, "📛 ФИО: %s\n", orDash(v.FullName))
	fmt.Fprintf(&b, "🎯 Активность: %s\n", activityName(cond))
	fmt.Fprintf(&b, "📊 Количество отметок: %d\n", marks)

	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Снять с роли волонтёра",
				Action{Kind: ActRemoveVol, Code: v.UniqueCode}.Encode()),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("↩️ К списку волонтёров", Action{Kind: ActVolunteers}.Encode()),
		),
		backRow(),
	)
	return b.String(), &kb
}

func leaderboardView(entries []store.LeaderboardEntry, exportURL string) (string, *tgbotapi.InlineKeyboardMarkup) {
	if len(entries) == 0 {
		return "Статистика пока отсутствует.", backKeyboard()
	}
	var b strings.Builder
	b.WriteString("📊 Статистика конкурса:\n\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "🏷 %s | %s | %d/%d ✅\n\n",
			e.Record.CallSign, orDash(e.Record.Tag), e.Completed, models.ConditionCount)
	}
	if exportURL != "" {
		fmt.Fprintf(&b, "📤 CSV выгрузка: %s", exportURL)
	}
	return b.String(), backKeyboard()
}

func groupList() string {
	names := make([]string, 0, models.ConditionCount)
	for _, g := range models.Groups() {
		names = append(names, string(g))
	}
	return strings.Join(names, ", ")
}

func promptAddText() string {
	return fmt.Sprintf(
		"Введите команду /add_volunteer &lt;код или позывной&gt; &lt;группа&gt;\nДоступные группы: %s\nПример: <code>/add_volunteer 12345 А</code>",
		groupList())
}

func promptMarkText(role models.Role) string {
	if role == models.RoleOrganizer {
		return fmt.Sprintf("Введите команду /mark &lt;код или позывной&gt; &lt;группа&gt;\nДоступные группы: %s", groupList())
	}
	return "Введите команду /mark &lt;код или позывной&gt;\nПример: <code>/mark лиса#1</code>"
}

func promptUnmarkText(role models.Role) string {
	if role == models.RoleOrganizer {
		return fmt.Sprintf("Введите команду /unmark &lt;код или позывной&gt; &lt;группа&gt;\nДоступные группы: %s\nПример: <code>/unmark лиса#1 А</code>", groupList())
	}
	return "Введите команду /unmark &lt;код или позывной&gt;\nПример: <code>/unmark лиса#1</code>"
}

// errorText maps a core error to the user-facing failure view. Unknown
// errors get the generic storage message; nothing leaks internals.
func errorText(err error) string {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return "❌ Указанный пользователь не найден."
	case errors.Is(err, models.ErrGroupNotAssigned):
		return "❌ Вы не привязаны к группе."
	case errors.Is(err, models.ErrPermissionDenied):
		return "⛔ У вас нет доступа к этой команде."
	case errors.Is(err, models.ErrSlotOccupied):
		return "❌ Сообщение уже открыто. Вернитесь в главное меню."
	case errors.Is(err, models.ErrInvalidArgument):
		return "❌ Неверный формат команды."
	case errors.Is(err, models.ErrAssetUnavailable):
		return "❌ Изображение временно недоступно."
	default:
		return "❌ Произошла ошибка. Попробуйте ещё раз."
	}
}
