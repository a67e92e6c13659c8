// Package commands describes slash commands a bot exposes.
package commands

import (
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Command represents a bot command with its handler, description, and metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands run only for the configured admin and are never published in the menu.
	AdminOnly bool
	Hidden    bool
	Aliases   []string
}

var (
	// ErrNoSlash is returned for names that do not start with "/".
	ErrNoSlash = errors.New("command name must start with /")
	// ErrIncomplete is returned for commands without a handler or description.
	ErrIncomplete = errors.New("command needs a handler and a description")
)

// Validate checks that cmd can be registered under name.
func (c Command) Validate(name string) error {
	if !strings.HasPrefix(name, "/") || len(name) < 2 {
		return fmt.Errorf("%q: %w", name, ErrNoSlash)
	}
	if c.Handler == nil || strings.TrimSpace(c.Description) == "" {
		return fmt.Errorf("%q: %w", name, ErrIncomplete)
	}
	return nil
}

// Visible reports whether the command belongs in the published command menu.
func (c Command) Visible() bool {
	return !c.Hidden && !c.AdminOnly
}

// Matches reports whether name is one of the aliases, with or without the slash.
func (c Command) Matches(name string) bool {
	for _, alias := range c.Aliases {
		if alias == name || "/"+alias == name {
			return true
		}
	}
	return false
}
