package dispatch

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf16"

	"github.com/m3rciful/utilitybot/bots/utility/domain"
	"github.com/m3rciful/utilitybot/core/telegram/format"
)

const (
	textComingSoon   = "Coming soon!"
	textEmptyQR      = "❌ Please send some text or URL"
	textRenderFailed = "❌ Error creating QR. Please try again."
	textInvalidURL   = "❌ Please send a valid URL (e.g., https://example.com)"
	textURLTooLong   = "❌ That link is too long to send back. Please try a shorter URL."
	textNoStats      = "❌ No statistics found. Use /start first!"
	textLinkDetected = "🔗 I detected a URL! What would you like to do?"
	textPlainText    = "📝 I see you sent some text. Want to make a QR code?"
	textCancelled    = "✖️ Cancelled. Pick something else from /start."
	textNothingToDo  = "Nothing to cancel."

	textQRPrompt = "🎯 *QR CODE GENERATOR*\n\n" +
		"Send me any URL or text and I'll create a QR code!\n\n" +
		"Examples:\n" +
		"• https://google.com\n" +
		"• Your contact info\n" +
		"• Any message\n\n" +
		"Send your text now:"

	textURLPrompt = "🔗 *URL SHORTENER*\n\n" +
		"Send me any long URL and I'll shorten it:\n\n" +
		"Example:\n" +
		"Input: https://www.example.com/very-long-path-name\n" +
		"Output: https://tinyurl.com/abc123\n\n" +
		"Send your URL now!"

	textHelp = "🆘 *HELP & SUPPORT*\n\n" +
		"*Available Commands:*\n" +
		"/start - Start the bot\n" +
		"/help - Show this help\n" +
		"/cancel - Drop the pending task\n\n" +
		"*Features:*\n" +
		"• QR Code Generator - Create QR from any text/URL\n" +
		"• URL Shortener - Shorten long URLs\n\n" +
		"*How to use:*\n" +
		"1. Click 'Generate QR'\n" +
		"2. Send URL/text\n" +
		"3. Get QR code!\n\n" +
		"*For URL Shortener:*\n" +
		"1. Click 'Shorten URL'\n" +
		"2. Send long URL\n" +
		"3. Get shortened link!"
)

func welcomeText(name string) string {
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("✨ *Welcome %s!*\n\n"+
		"🚀 *UTILITY BOT*\n\n"+
		"*Features:*\n"+
		"• *SMART QR GENERATOR* - Any text/link to QR\n"+
		"• *URL SHORTENER* - Make long links short\n\n"+
		"👇 *Choose what you need:*", format.Markdown(name))
}

func qrCaption(content string, limit, size int) string {
	return fmt.Sprintf("✅ *QR Code Generated!*\n\n"+
		"*Content:* %s\n"+
		"*Size:* %dx%d pixels\n\n"+
		"💡 _Scan with any QR scanner app_",
		format.Markdown(domain.Truncate(content, limit, "...")), size, size)
}

const (
	// maxMessageUTF16 is Telegram's text limit, counted in UTF-16 code units.
	maxMessageUTF16 = 4096
	// originalEchoLimit caps the long URL echoed next to the short one, in runes.
	originalEchoLimit = 200
)

// shortenedText renders the shortening result. The short value is never cut
// because a truncated link is useless; ok is false when the reply would not
// fit in one message.
func shortenedText(original, short string) (text string, ok bool) {
	code := "`" + short + "`"
	if strings.Contains(short, "`") {
		code = format.Markdown(short)
	}
	text = fmt.Sprintf("✅ *URL Shortened!*\n\n"+
		"*Original:* %s\n"+
		"*Short:* %s\n\n"+
		"💡 _Click to copy and share_",
		format.Markdown(domain.Truncate(original, originalEchoLimit, "...")), code)
	return text, utf16Len(text) <= maxMessageUTF16
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += max(utf16.RuneLen(r), 1)
	}
	return n
}

// recentTasks is how many history entries the stats view lists.
const recentTasks = 3

var kindLabels = map[domain.TaskKind]string{
	domain.TaskQRGeneration:  "🎨 QR",
	domain.TaskURLShortening: "🔗 Link",
}

func statsText(st domain.Stats, recent []domain.HistoryEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 *YOUR STATISTICS*\n\n"+
		"🆔 User ID: `%d`\n"+
		"📈 Total Tasks: %d\n"+
		"✅ Actions Performed: %d\n"+
		"📅 Joined: %s\n",
		st.UserID, st.TaskCount, st.HistoryCount, st.JoinedAt.UTC().Format("2006-01-02"))
	if len(recent) > 0 {
		b.WriteString("\n🕘 *Recent:*\n")
		for _, e := range recent {
			label, ok := kindLabels[e.Kind]
			if !ok {
				label = format.Markdown(string(e.Kind))
			}
			fmt.Fprintf(&b, "• %s %s\n", label, format.Markdown(domain.Truncate(e.InputSnapshot, 30, "...")))
		}
	}
	b.WriteString("\n🎯 Keep using the bot!")
	return b.String()
}

func globalStatsText(gs domain.GlobalStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📈 *BOT STATISTICS*\n\nUsers: %d\nTasks: %d\n", gs.Users, gs.Tasks)
	kinds := make([]string, 0, len(gs.ByKind))
	for k := range gs.ByKind {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(&b, "• %s: %d\n", format.Markdown(k), gs.ByKind[domain.TaskKind(k)])
	}
	return strings.TrimRight(b.String(), "\n")
}
