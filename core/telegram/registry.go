package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/m3rciful/utilitybot/core/logger"
	"github.com/m3rciful/utilitybot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

// ErrDuplicate is returned when a command or callback key is registered twice.
var ErrDuplicate = errors.New("already registered")

// Registry holds bot commands and inline button callbacks keyed by their unique id.
// Registration normally happens before the bot starts; lookups are safe at any time.
type Registry struct {
	mu               sync.RWMutex
	commands         map[string]commands.Command
	callbacks        map[string]tele.HandlerFunc
	callbackNotFound tele.HandlerFunc
}

// NewRegistry creates an empty Registry whose unknown-callback fallback shows a toast.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]commands.Command),
		callbacks: make(map[string]tele.HandlerFunc),
		callbackNotFound: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
		},
	}
}

func wireSkip(event, key string, err error) {
	logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, event,
		slog.String("key", key),
		slog.String("err", err.Error()),
	)
}

// RegisterCommand adds cmd under name ("/start"). Invalid or duplicate
// registrations are logged and rejected.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	if err := cmd.Validate(name); err != nil {
		wireSkip("register.command.skip", name, err)
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.commands[name]; exists {
		err := fmt.Errorf("command %s: %w", name, ErrDuplicate)
		wireSkip("register.command.duplicate", name, err)
		return err
	}
	r.commands[name] = cmd
	return nil
}

// ListCommands returns commands sorted by name; visibleOnly drops hidden and admin-only ones.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var list []tele.Command
	for name, meta := range r.commands {
		if visibleOnly && !meta.Visible() {
			continue
		}
		list = append(list, tele.Command{Text: name, Description: meta.Description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// LookupCommand resolves a name or alias to the canonical key and its command.
func (r *Registry) LookupCommand(name string) (string, commands.Command, bool) {
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if cmd, ok := r.commands[name]; ok {
		return name, cmd, true
	}
	for key, cmd := range r.commands {
		if cmd.Matches(name) {
			return key, cmd, true
		}
	}
	return "", commands.Command{}, false
}

// Commands returns a snapshot of all registered commands.
func (r *Registry) Commands() map[string]commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]commands.Command, len(r.commands))
	for k, v := range r.commands {
		out[k] = v
	}
	return out
}

// RegisterCallback maps an inline button unique id to handler.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if key == "" || handler == nil {
		err := errors.New("callback needs a key and a handler")
		wireSkip("register.callback.skip", key, err)
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.callbacks[key]; exists {
		err := fmt.Errorf("callback %s: %w", key, ErrDuplicate)
		wireSkip("register.callback.duplicate", key, err)
		return err
	}
	r.callbacks[key] = handler
	return nil
}

// GetCallback returns the handler registered for key.
func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns sorted keys (for diagnostics).
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// SetCallbackNotFound replaces the fallback handler for unknown callbacks.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.callbackNotFound = h
	r.mu.Unlock()
}

// CallbackNotFound returns the current fallback callback handler.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbackNotFound
}

// CommandSetter is the part of *tele.Bot used to publish the command menu.
type CommandSetter interface {
	SetCommands(opts ...interface{}) error
}

// SetupCommands publishes the visible commands in the Telegram command menu.
// Failures are logged; the bot keeps working without the menu.
func SetupCommands(api CommandSetter, reg *Registry) {
	list := reg.ListCommands(true)
	if err := api.SetCommands(list); err != nil {
		logger.TWire.LogAttrs(context.Background(), slog.LevelError, "register.commands.set_failed",
			slog.String("err", err.Error()),
		)
		return
	}
	names := make([]string, 0, len(list))
	for _, c := range list {
		names = append(names, c.Text)
	}
	preview, _ := logger.SummarizeStrings(names, 10)
	logger.TWire.LogAttrs(context.Background(), slog.LevelDebug, "register.commands.set",
		slog.Int("commands", len(list)),
		slog.String("names", preview),
	)
}
