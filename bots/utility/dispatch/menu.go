package dispatch

import "github.com/m3rciful/utilitybot/core/telegram/state"

// Menu option ids carried by inline buttons.
const (
	OptionGenerateQR = "generate_qr"
	OptionShortenURL = "shorten_url"
	OptionShowStats  = "show_stats"
	OptionShowHelp   = "show_help"
)

// OptionIDs lists every option the bot understands.
var OptionIDs = []string{OptionGenerateQR, OptionShortenURL, OptionShowStats, OptionShowHelp}

// Pending tasks kept in the state store.
const (
	StateAwaitingQR  state.State = "awaiting_qr_input"
	StateAwaitingURL state.State = "awaiting_url_input"
)

// Button is one inline menu entry.
type Button struct {
	Text   string
	Option string
}

// Menu is rows of buttons.
type Menu [][]Button

var (
	btnQR       = Button{Text: "🎯 Generate QR", Option: OptionGenerateQR}
	btnShorten  = Button{Text: "🔗 Shorten URL", Option: OptionShortenURL}
	btnStats    = Button{Text: "📊 My Stats", Option: OptionShowStats}
	btnHelp     = Button{Text: "🆘 Help", Option: OptionShowHelp}
	btnCreateQR = Button{Text: "🎯 Create QR Code", Option: OptionGenerateQR}
)

// MainMenu is the 2x2 menu shown on /start.
func MainMenu() Menu {
	return Menu{
		{btnQR, btnShorten},
		{btnStats, btnHelp},
	}
}

func linkSuggestionMenu() Menu {
	return Menu{{btnCreateQR, btnShorten}}
}

func textSuggestionMenu() Menu {
	return Menu{{btnCreateQR}}
}
