package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/utilitybot/bots/utility/domain"
	"github.com/m3rciful/utilitybot/bots/utility/storage"
	"github.com/m3rciful/utilitybot/bots/utility/tasks"
	"github.com/m3rciful/utilitybot/core/logger"
	"github.com/m3rciful/utilitybot/core/telegram/state"
)

const component = "dispatch"

// Reply is what the user sees after an event. Exactly one of Text, Image or
// Notice is set.
type Reply struct {
	Text string
	Menu Menu
	// Edit replaces the message carrying the pressed button instead of sending a new one.
	Edit bool

	Image   []byte
	Caption string

	// Notice is a short toast answering a button press.
	Notice string
}

// Responder delivers replies to the user the event came from.
type Responder interface {
	Reply(ctx context.Context, r Reply) error
}

// User identifies who triggered an event.
type User struct {
	ID          int64
	DisplayName string
}

// StateStore keeps pending tasks.
type StateStore interface {
	Get(userID int64) state.State
	Set(userID int64, st state.State)
	Clear(userID int64)
	Lock(userID int64) (unlock func())
}

// QRRenderer renders QR codes.
type QRRenderer interface {
	Generate(ctx context.Context, text string) ([]byte, error)
	Size() int
}

// URLShortener shortens links and never fails.
type URLShortener interface {
	Shorten(ctx context.Context, longURL string) string
}

// Store persists users and completed tasks.
type Store interface {
	UpsertUser(ctx context.Context, id int64, displayName string) (domain.User, error)
	RecordTask(ctx context.Context, userID int64, kind domain.TaskKind, input string) error
	GetStats(ctx context.Context, userID int64) (domain.Stats, error)
	GlobalStats(ctx context.Context) (domain.GlobalStats, error)
	History(ctx context.Context, userID int64, limit int) ([]domain.HistoryEntry, error)
}

// Deps wires the dispatcher to its collaborators.
type Deps struct {
	States    StateStore
	QR        QRRenderer
	Shortener URLShortener
	Store     Store
	// CaptionLimit caps the echoed QR content, in runes.
	CaptionLimit int
}

// Dispatcher runs the per-user state machine.
type Dispatcher struct {
	states       StateStore
	qr           QRRenderer
	shortener    URLShortener
	store        Store
	captionLimit int
}

// New checks deps and builds a Dispatcher.
func New(deps Deps) (*Dispatcher, error) {
	switch {
	case deps.States == nil:
		return nil, errors.New("dispatch: nil state store")
	case deps.QR == nil:
		return nil, errors.New("dispatch: nil qr renderer")
	case deps.Shortener == nil:
		return nil, errors.New("dispatch: nil shortener")
	case deps.Store == nil:
		return nil, errors.New("dispatch: nil store")
	}
	limit := deps.CaptionLimit
	if limit <= 0 {
		limit = 50
	}
	return &Dispatcher{
		states:       deps.States,
		qr:           deps.QR,
		shortener:    deps.Shortener,
		store:        deps.Store,
		captionLimit: limit,
	}, nil
}

// Start registers the user and shows the main menu. A pending task survives.
func (d *Dispatcher) Start(ctx context.Context, u User, r Responder) error {
	if _, err := d.store.UpsertUser(ctx, u.ID, u.DisplayName); err != nil {
		d.persistFailed(ctx, "user.upsert", err)
	}
	return r.Reply(ctx, Reply{Text: welcomeText(u.DisplayName), Menu: MainMenu()})
}

// Help shows usage. It never touches the pending task.
func (d *Dispatcher) Help(ctx context.Context, u User, r Responder) error {
	return r.Reply(ctx, Reply{Text: textHelp})
}

// Cancel drops the pending task, if any.
func (d *Dispatcher) Cancel(ctx context.Context, u User, r Responder) error {
	unlock := d.states.Lock(u.ID)
	defer unlock()

	from := d.states.Get(u.ID)
	d.states.Clear(u.ID)
	d.logTransition(ctx, "cancel", from, state.StateIdle, "ok")
	if from == state.StateIdle {
		return r.Reply(ctx, Reply{Text: textNothingToDo})
	}
	return r.Reply(ctx, Reply{Text: textCancelled})
}

// Select handles a menu button press.
func (d *Dispatcher) Select(ctx context.Context, u User, option string, r Responder) error {
	unlock := d.states.Lock(u.ID)
	defer unlock()

	from := d.states.Get(u.ID)
	switch option {
	case OptionGenerateQR:
		d.states.Set(u.ID, StateAwaitingQR)
		d.logTransition(ctx, option, from, StateAwaitingQR, "ok")
		return r.Reply(ctx, Reply{Text: textQRPrompt, Edit: true})
	case OptionShortenURL:
		d.states.Set(u.ID, StateAwaitingURL)
		d.logTransition(ctx, option, from, StateAwaitingURL, "ok")
		return r.Reply(ctx, Reply{Text: textURLPrompt, Edit: true})
	case OptionShowStats:
		return r.Reply(ctx, d.statsReply(ctx, u.ID))
	case OptionShowHelp:
		return r.Reply(ctx, Reply{Text: textHelp, Edit: true})
	default:
		logger.Debug(ctx, component, "select.unknown",
			slog.String("status", "skip"),
			slog.String("option", logger.SanitizeLimit(option, 64)),
		)
		return r.Reply(ctx, Reply{Notice: textComingSoon})
	}
}

// Text handles a plain text message. Commands are ignored.
func (d *Dispatcher) Text(ctx context.Context, u User, text string, r Responder) error {
	if strings.HasPrefix(text, "/") {
		return nil
	}

	unlock := d.states.Lock(u.ID)
	defer unlock()

	switch from := d.states.Get(u.ID); from {
	case StateAwaitingQR:
		d.states.Clear(u.ID)
		return d.generateQR(ctx, u, text, r)
	case StateAwaitingURL:
		d.states.Clear(u.ID)
		return d.shortenURL(ctx, u, text, r)
	default:
		return d.suggest(ctx, text, r)
	}
}

// AdminStats reports usage over all users.
func (d *Dispatcher) AdminStats(ctx context.Context, r Responder) error {
	gs, err := d.store.GlobalStats(ctx)
	if err != nil {
		d.persistFailed(ctx, "stats.global", err)
		return r.Reply(ctx, Reply{Text: "❌ Statistics are unavailable right now."})
	}
	return r.Reply(ctx, Reply{Text: globalStatsText(gs)})
}

func (d *Dispatcher) generateQR(ctx context.Context, u User, text string, r Responder) error {
	start := time.Now()
	if strings.TrimSpace(text) == "" {
		d.logTask(ctx, domain.TaskQRGeneration, "invalid", start)
		return r.Reply(ctx, Reply{Text: textEmptyQR})
	}
	img, err := d.qr.Generate(ctx, text)
	if err != nil {
		d.logTask(ctx, domain.TaskQRGeneration, "fail", start, slog.String("err", err.Error()))
		return r.Reply(ctx, Reply{Text: textRenderFailed})
	}
	size := d.qr.Size()
	if err := r.Reply(ctx, Reply{Image: img, Caption: qrCaption(text, d.captionLimit, size)}); err != nil {
		d.logTask(ctx, domain.TaskQRGeneration, "fail", start, slog.String("err", err.Error()))
		return err
	}
	d.record(ctx, u, domain.TaskQRGeneration, text)
	d.logTask(ctx, domain.TaskQRGeneration, "ok", start, slog.Int("bytes", len(img)))
	return nil
}

func (d *Dispatcher) shortenURL(ctx context.Context, u User, text string, r Responder) error {
	start := time.Now()
	if !tasks.IsValidURL(text) {
		d.logTask(ctx, domain.TaskURLShortening, "invalid", start)
		return r.Reply(ctx, Reply{Text: textInvalidURL})
	}
	short := d.shortener.Shorten(ctx, text)
	body, fits := shortenedText(text, short)
	if !fits {
		d.logTask(ctx, domain.TaskURLShortening, "invalid", start, slog.String("reason", "too_long"))
		return r.Reply(ctx, Reply{Text: textURLTooLong})
	}
	if err := r.Reply(ctx, Reply{Text: body}); err != nil {
		d.logTask(ctx, domain.TaskURLShortening, "fail", start, slog.String("err", err.Error()))
		return err
	}
	d.record(ctx, u, domain.TaskURLShortening, text)
	d.logTask(ctx, domain.TaskURLShortening, "ok", start, slog.Bool("shortened", short != text))
	return nil
}

func (d *Dispatcher) suggest(ctx context.Context, text string, r Responder) error {
	switch {
	case text == "":
		return nil
	case tasks.LooksLikeLink(text):
		return r.Reply(ctx, Reply{Text: textLinkDetected, Menu: linkSuggestionMenu()})
	default:
		return r.Reply(ctx, Reply{Text: textPlainText, Menu: textSuggestionMenu()})
	}
}

func (d *Dispatcher) statsReply(ctx context.Context, userID int64) Reply {
	st, err := d.store.GetStats(ctx, userID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return Reply{Text: textNoStats, Edit: true}
	case err != nil:
		d.persistFailed(ctx, "stats.user", err)
		return Reply{Text: textNoStats, Edit: true}
	}
	recent, err := d.store.History(ctx, userID, recentTasks)
	if err != nil {
		d.persistFailed(ctx, "stats.history", err)
		recent = nil
	}
	return Reply{Text: statsText(st, recent), Edit: true}
}

// record runs after the reply went out; failures are only logged.
func (d *Dispatcher) record(ctx context.Context, u User, kind domain.TaskKind, input string) {
	err := d.store.RecordTask(ctx, u.ID, kind, input)
	if errors.Is(err, storage.ErrNotFound) {
		// first contact without /start
		if _, err = d.store.UpsertUser(ctx, u.ID, u.DisplayName); err == nil {
			err = d.store.RecordTask(ctx, u.ID, kind, input)
		}
	}
	if err != nil {
		d.persistFailed(ctx, "task.record", fmt.Errorf("%s: %w", kind, err))
	}
}

func (d *Dispatcher) persistFailed(ctx context.Context, event string, err error) {
	logger.Error(ctx, component, event,
		slog.String("status", "fail"),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
	)
}

func (d *Dispatcher) logTransition(ctx context.Context, trigger string, from, to state.State, status string) {
	logger.Debug(ctx, component, "transition",
		slog.String("status", status),
		slog.String("trigger", trigger),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
}

func (d *Dispatcher) logTask(ctx context.Context, kind domain.TaskKind, outcome string, start time.Time, attrs ...slog.Attr) {
	attrs = append([]slog.Attr{
		slog.String("kind", string(kind)),
		slog.String("outcome", outcome),
		slog.Duration("duration", logger.Took(start)),
	}, attrs...)
	logger.Info(ctx, component, "task", attrs...)
}
