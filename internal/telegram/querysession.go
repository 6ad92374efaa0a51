package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	vitalsbot "github.com/kristjanh/vitalsbot"
	"github.com/kristjanh/vitalsbot/internal/builder"
	"github.com/kristjanh/vitalsbot/internal/cursor"
	"github.com/kristjanh/vitalsbot/internal/format"
	"github.com/kristjanh/vitalsbot/internal/sqlguard"
)

// Stages of the advanced-query conversation.
type stage int

const (
	stageNone stage = iota
	stageChooseMode
	stagePickTable
	stagePickLimit
	stageEnterSQL
)

// session holds per-chat guided-builder state. Sessions are created on /q,
// advanced by callbacks, and dropped on completion or /cancel.
type session struct {
	stage stage
	table string
}

func (b *Bot) session(chatID int64) *session {
	v, ok := b.sessions.Load(chatID)
	if !ok {
		return nil
	}
	return v.(*session)
}

// queryEntry starts the /q flow: pick guided browsing or raw SQL.
func (b *Bot) queryEntry(chatID int64, messageID int) {
	b.sessions.Store(chatID, &session{stage: stageChooseMode})
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📂 Guided browse", "q:guided"),
			tgbotapi.NewInlineKeyboardButtonData("⌨️ Raw SQL", "q:raw"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Menu", "menu"),
		),
	)
	text := format.Section("Advanced query", strings.Join([]string{
		"Guided browse picks a table and page size for you.",
		"Raw SQL runs a single SELECT (validated, auto-limited).",
		"/cancel aborts at any step.",
	}, "\n"))
	b.reply(chatID, messageID, text, &kb)
}

// querySessionCallback advances the guided flow. Callback data:
//
//	q:guided          choose guided mode, show table picker
//	q:raw             choose raw mode, wait for SQL text
//	q:tbl:<name>      table picked, show limit picker
//	q:lim:<n>         limit picked, run the browse
//	br:<table>:<tok>  browse pagination (rewritten here from pg handling)
func (b *Bot) querySessionCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	chatID := cq.Message.Chat.ID
	messageID := cq.Message.MessageID
	data := cq.Data

	switch {
	case data == "q:guided":
		b.answerCallback(cq.ID, "")
		b.sessions.Store(chatID, &session{stage: stagePickTable})
		b.tablePicker(ctx, chatID, messageID)
	case data == "q:raw":
		b.answerCallback(cq.ID, "")
		b.sessions.Store(chatID, &session{stage: stageEnterSQL})
		b.editHTML(chatID, messageID, format.Section("Raw SQL",
			"Send a single <code>SELECT</code> statement as your next message.\n"+
				"It runs read-only with an enforced row limit."), backKeyboard("menu"))
	case strings.HasPrefix(data, "q:tbl:"):
		b.answerCallback(cq.ID, "")
		table := strings.TrimPrefix(data, "q:tbl:")
		b.sessions.Store(chatID, &session{stage: stagePickLimit, table: table})
		b.limitPicker(chatID, messageID, table)
	case strings.HasPrefix(data, "q:lim:"):
		b.answerCallback(cq.ID, "")
		s := b.session(chatID)
		if s == nil || s.stage != stagePickLimit || s.table == "" {
			b.editHTML(chatID, messageID, "Session expired. Start again with /q.", backKeyboard("menu"))
			return
		}
		n, err := strconv.Atoi(strings.TrimPrefix(data, "q:lim:"))
		if err != nil || n <= 0 {
			n = b.cfg.Query.BrowsePageSize
		}
		b.sessions.Delete(chatID)
		b.browseTable(ctx, chatID, messageID, s.table, n, 0)
	default:
		b.answerCallback(cq.ID, "")
	}
}

func (b *Bot) tablePicker(ctx context.Context, chatID int64, messageID int) {
	names, err := b.engine.Catalog().ListTables(ctx)
	if err != nil {
		b.replyError(chatID, messageID, err)
		return
	}
	if len(names) == 0 {
		b.editHTML(chatID, messageID, format.NoData("No tables to browse."), backKeyboard("menu"))
		return
	}
	// Callback data is capped at 64 bytes; very long table names cannot be
	// carried in a button and are reachable via raw SQL instead.
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, name := range names {
		if len("q:tbl:")+len(name) > 64 {
			continue
		}
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(name, "q:tbl:"+name),
		})
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Menu", "menu"),
	})
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.editHTML(chatID, messageID, format.Section("Pick a table", "Which table do you want to browse?"), &kb)
}

func (b *Bot) limitPicker(chatID int64, messageID int, table string) {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("10", "q:lim:10"),
			tgbotapi.NewInlineKeyboardButtonData("20", "q:lim:20"),
			tgbotapi.NewInlineKeyboardButtonData("50", "q:lim:50"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Menu", "menu"),
		),
	)
	b.editHTML(chatID, messageID,
		format.Section("Rows per page", "Browsing <code>"+format.EscapeHTML(table)+"</code>. How many rows per page?"), &kb)
}

// browseTable runs one guided page: the table descriptor is re-read from the
// live catalog right before the identifiers are interpolated.
func (b *Bot) browseTable(ctx context.Context, chatID int64, messageID int, table string, size, page int) {
	desc, err := b.engine.Catalog().Describe(ctx, table)
	if err != nil {
		b.replyError(chatID, messageID, err)
		return
	}

	tbl := builder.Table{
		Name:    desc.Name,
		Columns: desc.ColumnNames(),
	}
	// Default order: newest first when the table has a timestamp column.
	for _, col := range desc.Columns {
		if col.Category == vitalsbot.CategoryTimestamp {
			tbl.OrderByDefault = col.Name
			break
		}
	}

	sql, args, err := builder.Build(tbl, builder.Choice{
		Page: builder.PageRequest{Page: page, Size: size},
	}, b.cfg.Query.MaxPageSize)
	if err != nil {
		b.replyError(chatID, messageID, err)
		return
	}

	result, err := b.engine.ExecuteBuilt(ctx, sql, args, size)
	if err != nil {
		b.replyError(chatID, messageID, err)
		return
	}
	if len(result.Rows) == 0 {
		b.reply(chatID, messageID, format.NoData("No rows on this page."), backKeyboard("menu"))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Page %d, %d rows\n", page+1, len(result.Rows))
	sb.WriteString(format.MonoTable(result.Columns, result.Rows))
	text := format.SafeMessage(format.Section("Table: "+table, sb.String()), b.cfg.Query.MaxMessageLength)

	b.reply(chatID, messageID, text, b.browseNavKeyboard(table, size, page, len(result.Rows)))
}

func (b *Bot) browseNavKeyboard(table string, size, page, rowCount int) *tgbotapi.InlineKeyboardMarkup {
	fp := cursor.Fingerprint("browse", table, strconv.Itoa(size))
	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		token := cursor.Encode(cursor.Cursor{Page: page - 1, Fingerprint: fp})
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️ Prev", browseCallback(table, size, token)))
	}
	// Total is unknown for arbitrary tables; a full page implies there may
	// be more.
	if rowCount == size {
		token := cursor.Encode(cursor.Cursor{Page: page + 1, Fingerprint: fp})
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Next ➡️", browseCallback(table, size, token)))
	}
	rows := [][]tgbotapi.InlineKeyboardButton{}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardButtonData("⬅️ Menu", "menu")})
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

func browseCallback(table string, size int, token string) string {
	return "br:" + table + ":" + strconv.Itoa(size) + ":" + token
}

// browsePage handles br:<table>:<size>:<token> pagination callbacks.
func (b *Bot) browsePage(ctx context.Context, chatID int64, messageID int, data string) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) != 3 {
		return
	}
	table := parts[0]
	size, err := strconv.Atoi(parts[1])
	if err != nil || size <= 0 {
		size = b.cfg.Query.BrowsePageSize
	}
	fp := cursor.Fingerprint("browse", table, strconv.Itoa(size))
	c, err := cursor.Decode(parts[2], fp)
	if err != nil {
		b.logger.Debug().Err(err).Str("table", table).Msg("invalid cursor, resetting")
		c = cursor.Cursor{Page: 0, Fingerprint: fp}
	}
	b.browseTable(ctx, chatID, messageID, table, size, c.Page)
}

// runRawSQL validates and executes one user-typed statement.
func (b *Bot) runRawSQL(ctx context.Context, chatID int64, text string) {
	vq, err := sqlguard.Validate(text, b.cfg.Query.MaxRows)
	if err != nil {
		var rej *sqlguard.RejectionError
		if errors.As(err, &rej) {
			b.sendHTML(chatID, "🚫 "+format.EscapeHTML(rejectionText(rej)), backKeyboard("menu"))
			return
		}
		b.replyError(chatID, 0, err)
		return
	}

	result, err := b.engine.Execute(ctx, vq)
	if err != nil {
		b.replyError(chatID, 0, err)
		return
	}
	if len(result.Rows) == 0 {
		b.sendHTML(chatID, format.NoData("Query returned no rows."), backKeyboard("menu"))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d rows in %s\n", len(result.Rows), result.Elapsed.Round(time.Millisecond))
	sb.WriteString(format.MonoTable(result.Columns, result.Rows))
	text = format.SafeMessage(format.Section("Result", sb.String()), b.cfg.Query.MaxMessageLength)
	b.sendHTML(chatID, text, backKeyboard("menu"))
}

// rejectionText maps validator reason codes to user-facing phrasing.
func rejectionText(rej *sqlguard.RejectionError) string {
	switch rej.Reason {
	case sqlguard.ReasonMultiStatement:
		return "Only one statement per query."
	case sqlguard.ReasonNotSelect:
		return "Only SELECT queries are allowed."
	case sqlguard.ReasonBlockedKeyword:
		return "That query contains a blocked keyword: " + rej.Detail
	case sqlguard.ReasonCommentInjection:
		return "SQL comments are not allowed."
	case sqlguard.ReasonLimitExceeded:
		return "Requested LIMIT is too large: " + rej.Detail
	default:
		return "Query rejected: " + rej.Detail
	}
}
