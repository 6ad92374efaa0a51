package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	vitalsbot "github.com/kristjanh/vitalsbot"
	"github.com/kristjanh/vitalsbot/internal/cursor"
	"github.com/kristjanh/vitalsbot/internal/format"
	"github.com/kristjanh/vitalsbot/internal/timekit"
)

// handleCallback routes inline-keyboard callbacks. Data formats:
//
//	menu                 main menu
//	cmd:<command>        command entry points (weight, query, ...)
//	pg:<domain>:<token>  domain pagination
//	br:<table>:<size>:<token>  guided browse pagination
//	tl:<token>           table list pagination
//	q:...                guided-builder flow (querysession.go)
//	noop                 informational buttons
func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.Message == nil {
		b.answerCallback(cq.ID, "")
		return
	}
	chatID := cq.Message.Chat.ID
	messageID := cq.Message.MessageID
	data := cq.Data

	switch {
	case data == "noop":
		b.answerCallback(cq.ID, "")
	case data == "menu":
		b.answerCallback(cq.ID, "")
		b.editHTML(chatID, messageID, helpText(), mainMenuKeyboard())
	case strings.HasPrefix(data, "cmd:"):
		b.answerCallback(cq.ID, "")
		b.commandCallback(ctx, chatID, messageID, strings.TrimPrefix(data, "cmd:"))
	case strings.HasPrefix(data, "pg:"):
		b.answerCallback(cq.ID, "")
		parts := strings.SplitN(data, ":", 3)
		if len(parts) == 3 {
			b.domainPage(ctx, chatID, messageID, parts[1], parts[2])
		}
	case strings.HasPrefix(data, "br:"):
		b.answerCallback(cq.ID, "")
		b.browsePage(ctx, chatID, messageID, strings.TrimPrefix(data, "br:"))
	case strings.HasPrefix(data, "tl:"):
		b.answerCallback(cq.ID, "")
		b.tablesPage(ctx, chatID, messageID, strings.TrimPrefix(data, "tl:"))
	case strings.HasPrefix(data, "q:"):
		b.querySessionCallback(ctx, cq)
	default:
		b.answerCallback(cq.ID, "")
	}
}

func (b *Bot) commandCallback(ctx context.Context, chatID int64, messageID int, cmd string) {
	switch cmd {
	case "weight", "steps", "heart", "sleep":
		b.domainView(ctx, chatID, messageID, cmd, 0)
	case "today":
		b.todayView(ctx, chatID)
	case "tables":
		b.tablesView(ctx, chatID, messageID)
	case "query":
		b.queryEntry(chatID, messageID)
	case "health":
		b.healthView(ctx, chatID)
	}
}

// --- domain views ---

func (b *Bot) domainPage(ctx context.Context, chatID int64, messageID int, domainID, token string) {
	fp := cursor.Fingerprint("domain", domainID)
	c, err := cursor.Decode(token, fp)
	if err != nil {
		// Stale or foreign cursor: restart from the first page.
		b.logger.Debug().Err(err).Str("domain", domainID).Msg("invalid cursor, resetting")
		c = cursor.Cursor{Page: 0, Fingerprint: fp}
	}
	b.domainView(ctx, chatID, messageID, domainID, c.Page)
}

func (b *Bot) domainView(ctx context.Context, chatID int64, messageID int, domainID string, page int) {
	pageSize := b.cfg.Query.PageSize
	result, err := b.engine.DomainRecent(ctx, domainID, pageSize, page*pageSize)
	if err != nil {
		b.replyError(chatID, messageID, err)
		return
	}
	total, err := b.engine.DomainCount(ctx, domainID)
	if err != nil {
		b.replyError(chatID, messageID, err)
		return
	}

	title := strings.ToUpper(domainID[:1]) + domainID[1:]
	if len(result.Rows) == 0 {
		b.reply(chatID, messageID, format.NoData(fmt.Sprintf("No %s data on this page.", domainID)), backKeyboard("menu"))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d–%d of %d\n", page*pageSize+1, page*pageSize+len(result.Rows), total)
	sb.WriteString(format.MonoTable(result.Columns, result.Rows))

	// Sparkline and trend only on the first page, where they are visible
	// without scrolling back.
	if page == 0 {
		if values, err := b.engine.SparklineValues(ctx, domainID, 30); err == nil && len(values) > 0 {
			if line := format.Sparkline(values); line != "" {
				sb.WriteString("\n<code>" + line + "</code>")
			}
		}
		if recent, previous, err := b.engine.TrendAverages(ctx, domainID, 7); err == nil {
			if arrow := format.TrendArrow(recent, previous); arrow != "" {
				sb.WriteString("\n" + format.EscapeHTML(arrow))
			}
		}
	}

	text := format.SafeMessage(format.Section(title, sb.String()), b.cfg.Query.MaxMessageLength)
	kb := b.domainNavKeyboard(domainID, page, int(total), pageSize)
	b.reply(chatID, messageID, text, kb)
}

func (b *Bot) domainNavKeyboard(domainID string, page, total, pageSize int) *tgbotapi.InlineKeyboardMarkup {
	fp := cursor.Fingerprint("domain", domainID)
	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		token := cursor.Encode(cursor.Cursor{Page: page - 1, Fingerprint: fp, TotalKnown: true})
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️ Prev", "pg:"+domainID+":"+token))
	}
	if (page+1)*pageSize < total {
		token := cursor.Encode(cursor.Cursor{Page: page + 1, Fingerprint: fp, TotalKnown: true})
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Next ➡️", "pg:"+domainID+":"+token))
	}
	rows := [][]tgbotapi.InlineKeyboardButton{}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Menu", "menu"),
	})
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

// --- summaries ---

func (b *Bot) todayView(ctx context.Context, chatID int64) {
	s, err := b.engine.TodaySnapshot(ctx, b.loc)
	if err != nil {
		b.replyError(chatID, 0, err)
		return
	}

	var lines []string
	if s.WeightValue != nil {
		lines = append(lines, fmt.Sprintf("⚖️ Weight: %.1f kg", *s.WeightValue))
	}
	if s.StepsToday != nil {
		lines = append(lines, fmt.Sprintf("👟 Steps: %d", int64(*s.StepsToday)))
	}
	if s.SleepMinutes != nil {
		lines = append(lines, "😴 Sleep: "+timekit.FormatDuration(*s.SleepMinutes))
	}
	if s.HeartAvg != nil {
		lines = append(lines, fmt.Sprintf("❤️ Heart: %.0f bpm avg", *s.HeartAvg))
	}
	if len(lines) == 0 {
		b.sendHTML(chatID, format.NoData("No data for today yet."), backKeyboard("menu"))
		return
	}
	body := format.EscapeHTML(strings.Join(lines, "\n"))
	b.sendHTML(chatID, format.Section("Today", body), backKeyboard("menu"))
}

func (b *Bot) periodView(ctx context.Context, chatID int64, days int) {
	s, err := b.engine.PeriodReport(ctx, days, b.loc)
	if err != nil {
		b.replyError(chatID, 0, err)
		return
	}

	var lines []string
	if s.WeightDelta != nil {
		lines = append(lines, fmt.Sprintf("⚖️ Weight: %.1f → %.1f kg (%+.1f)", *s.WeightFirst, *s.WeightLast, *s.WeightDelta))
	}
	if s.StepsAvg != nil {
		lines = append(lines, fmt.Sprintf("👟 Steps: %d/day avg, %d total", int64(*s.StepsAvg), int64(orZero(s.StepsTotal))))
	}
	if s.SleepAvgMins != nil {
		lines = append(lines, "😴 Sleep: "+timekit.FormatDuration(*s.SleepAvgMins)+" avg")
	}
	if s.HeartAvg != nil {
		lines = append(lines, fmt.Sprintf("❤️ Heart: %.0f bpm avg", *s.HeartAvg))
	}
	if len(lines) == 0 {
		b.sendHTML(chatID, format.NoData(fmt.Sprintf("No data in the last %d days.", days)), backKeyboard("menu"))
		return
	}
	title := fmt.Sprintf("Last %d days", days)
	b.sendHTML(chatID, format.Section(title, format.EscapeHTML(strings.Join(lines, "\n"))), backKeyboard("menu"))
}

// --- schema views ---

func (b *Bot) tablesView(ctx context.Context, chatID int64, messageID int) {
	b.tablesPageAt(ctx, chatID, messageID, 0)
}

func (b *Bot) tablesPage(ctx context.Context, chatID int64, messageID int, token string) {
	fp := cursor.Fingerprint("tables")
	c, err := cursor.Decode(token, fp)
	if err != nil {
		c = cursor.Cursor{Page: 0, Fingerprint: fp}
	}
	b.tablesPageAt(ctx, chatID, messageID, c.Page)
}

func (b *Bot) tablesPageAt(ctx context.Context, chatID int64, messageID int, page int) {
	names, err := b.engine.Catalog().ListTables(ctx)
	if err != nil {
		b.replyError(chatID, messageID, err)
		return
	}
	if len(names) == 0 {
		b.reply(chatID, messageID, format.NoData("No tables found."), backKeyboard("menu"))
		return
	}

	pageSize := b.cfg.Query.PageSize
	start := page * pageSize
	if start >= len(names) {
		start, page = 0, 0
	}
	end := start + pageSize
	if end > len(names) {
		end = len(names)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d tables. Use /describe &lt;name&gt; for details.\n\n", len(names))
	for _, name := range names[start:end] {
		sb.WriteString("• <code>" + format.EscapeHTML(name) + "</code>\n")
	}

	fp := cursor.Fingerprint("tables")
	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		token := cursor.Encode(cursor.Cursor{Page: page - 1, Fingerprint: fp, TotalKnown: true})
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️ Prev", "tl:"+token))
	}
	if end < len(names) {
		token := cursor.Encode(cursor.Cursor{Page: page + 1, Fingerprint: fp, TotalKnown: true})
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Next ➡️", "tl:"+token))
	}
	rows := [][]tgbotapi.InlineKeyboardButton{}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardButtonData("⬅️ Menu", "menu")})
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)

	b.reply(chatID, messageID, format.Section("Tables", sb.String()), &kb)
}

func (b *Bot) describeView(ctx context.Context, chatID int64, table string) {
	if table == "" {
		b.sendHTML(chatID, format.Section("Describe", "Usage: /describe &lt;table&gt;"), backKeyboard("menu"))
		return
	}
	// Always a fresh read so the operator sees the live schema, not the
	// startup snapshot.
	desc, indexes, err := b.engine.Catalog().ForceDescribe(ctx, table)
	if err != nil {
		b.replyError(chatID, 0, err)
		return
	}

	var sb strings.Builder
	for _, col := range desc.Columns {
		nullable := "NOT NULL"
		if col.Nullable {
			nullable = "NULL"
		}
		fmt.Fprintf(&sb, "• <code>%s</code> %s %s\n",
			format.EscapeHTML(col.Name), format.EscapeHTML(col.Type), nullable)
	}
	if len(indexes) > 0 {
		sb.WriteString("\n<b>Indexes</b>\n")
		for _, idx := range indexes {
			sb.WriteString("• <code>" + format.EscapeHTML(idx.Name) + "</code>\n")
		}
	}
	text := format.SafeMessage(format.Section("Table: "+table, sb.String()), b.cfg.Query.MaxMessageLength)
	b.sendHTML(chatID, text, backKeyboard("menu"))
}

func (b *Bot) healthView(ctx context.Context, chatID int64) {
	h := b.engine.Health(ctx)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Uptime: %s\n", h.Uptime.Round(time.Second))
	if h.DBReachable {
		sb.WriteString("Database: ✅ reachable\n")
	} else {
		sb.WriteString("Database: ❌ unreachable\n")
	}
	if h.LastQueryAt != nil {
		sb.WriteString("Last query: " + timekit.FormatDT(*h.LastQueryAt, b.loc) + "\n")
	}
	sb.WriteString("\n<b>Domains</b>\n")
	for _, d := range h.Domains {
		if d.Available {
			fmt.Fprintf(&sb, "• %s: ✅ %s\n", d.DomainID, format.EscapeHTML(d.Table))
		} else {
			fmt.Fprintf(&sb, "• %s: ❌ %s\n", d.DomainID, format.EscapeHTML(d.Reason))
		}
	}
	b.sendHTML(chatID, format.Section("Health", sb.String()), backKeyboard("menu"))
}

// --- shared helpers ---

// reply edits in place for callback-originated views, sends otherwise.
func (b *Bot) reply(chatID int64, messageID int, html string, kb *tgbotapi.InlineKeyboardMarkup) {
	if messageID != 0 {
		b.editHTML(chatID, messageID, html, kb)
		return
	}
	b.sendHTML(chatID, html, kb)
}

// replyError maps taxonomy errors to friendly text. Raw driver errors never
// get here — the engine converts them at its boundary.
func (b *Bot) replyError(chatID int64, messageID int, err error) {
	var text string
	switch {
	case errors.Is(err, vitalsbot.ErrDomainUnavailable):
		text = format.NoData("That data is not available (table not found or columns unresolvable).")
	case errors.Is(err, vitalsbot.ErrCatalogUnavailable):
		text = "⚠️ The database is unreachable right now. Try again later."
	case errors.Is(err, vitalsbot.ErrPoolTimeout):
		text = "⚠️ Busy right now. Try again shortly."
	case errors.Is(err, vitalsbot.ErrTableNotFound):
		text = format.NoData("No such table.")
	default:
		text = "⚠️ " + format.EscapeHTML(truncate(err.Error(), 300))
	}
	b.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("request failed")
	b.reply(chatID, messageID, text, backKeyboard("menu"))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

func orZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func helpText() string {
	return format.Section("Health Explorer", strings.Join([]string{
		"Read-only access to your health database.",
		"",
		"/weight /steps /heart /sleep — browse a domain",
		"/today — today's snapshot",
		"/week /month — period summary",
		"/tables — list tables",
		"/describe &lt;table&gt; — table schema",
		"/q — advanced query (guided or raw SQL)",
		"/health — bot and database status",
	}, "\n"))
}

func mainMenuKeyboard() *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⚖️ Weight", "cmd:weight"),
			tgbotapi.NewInlineKeyboardButtonData("👟 Steps", "cmd:steps"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❤️ Heart", "cmd:heart"),
			tgbotapi.NewInlineKeyboardButtonData("😴 Sleep", "cmd:sleep"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📅 Today", "cmd:today"),
			tgbotapi.NewInlineKeyboardButtonData("📋 Tables", "cmd:tables"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔍 Query", "cmd:query"),
			tgbotapi.NewInlineKeyboardButtonData("🩺 Health", "cmd:health"),
		),
	)
	return &kb
}

func backKeyboard(target string) *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", target),
		),
	)
	return &kb
}
