// Package commands keeps the admin command table: handlers, help text, aliases
// and the menu published to Telegram.
package commands

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"sort"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/m3rciful/taxibot/core/logger"
	"github.com/m3rciful/taxibot/internal/channel"
)

// ErrUsage makes the router answer with the command's usage line.
var ErrUsage = errors.New("commands: bad usage")

// Request is one parsed command invocation.
type Request struct {
	Name   string
	Args   []string
	Sender channel.User
	Chat   int64
}

// Handler executes a command and returns the reply text (HTML).
type Handler func(ctx context.Context, req Request) (string, error)

// Command represents an admin command with its handler, description, and metadata.
type Command struct {
	Handler     Handler
	Description string
	// Usage lists the arguments, e.g. "<credential> <name>".
	Usage   string
	MinArgs int
	Hidden  bool
	Aliases []string
}

// Registry holds commands keyed by canonical name (without slash).
type Registry struct {
	commands map[string]Command
	aliases  map[string]string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]Command),
		aliases:  make(map[string]string),
	}
}

// Register adds a command. Invalid or duplicate registrations are logged and skipped.
func (r *Registry) Register(name string, cmd Command) {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" || cmd.Handler == nil || cmd.Description == "" {
		logger.Warn(context.Background(), logger.CompWire, "register.command.skip",
			slog.String("command", name),
			slog.String("cause", "invalid"),
		)
		return
	}
	if _, exists := r.resolve(name); exists {
		logger.Warn(context.Background(), logger.CompWire, "register.command.duplicate",
			slog.String("command", name),
		)
		return
	}
	r.commands[name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[strings.TrimPrefix(alias, "/")] = name
	}
}

func (r *Registry) resolve(name string) (string, bool) {
	if _, ok := r.commands[name]; ok {
		return name, true
	}
	if canonical, ok := r.aliases[name]; ok {
		return canonical, true
	}
	return "", false
}

// Lookup finds a command by name or alias and returns its canonical name.
func (r *Registry) Lookup(name string) (string, Command, bool) {
	canonical, ok := r.resolve(strings.TrimPrefix(name, "/"))
	if !ok {
		return "", Command{}, false
	}
	return canonical, r.commands[canonical], true
}

// Entry is one visible command, used for help text and the bot menu.
type Entry struct {
	Name        string
	Usage       string
	Description string
}

// List returns commands sorted by name; hidden commands are skipped when visibleOnly is set.
func (r *Registry) List(visibleOnly bool) []Entry {
	list := make([]Entry, 0, len(r.commands))
	for name, cmd := range r.commands {
		if visibleOnly && cmd.Hidden {
			continue
		}
		list = append(list, Entry{Name: name, Usage: cmd.Usage, Description: cmd.Description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// Parse splits "/name@bot arg1 'arg two'" into the command name and its arguments.
// Unbalanced quotes fall back to whitespace splitting.
func Parse(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	head, rest, _ := strings.Cut(text, " ")
	name := strings.TrimPrefix(head, "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	if name == "" {
		return "", nil, false
	}
	args, err := shellquote.Split(rest)
	if err != nil {
		args = strings.Fields(rest)
	}
	return strings.ToLower(name), args, true
}

// Run executes a parsed request. Unknown commands report ok=false.
func (r *Registry) Run(ctx context.Context, req Request) (reply string, ok bool, err error) {
	name, cmd, found := r.Lookup(req.Name)
	if !found {
		return "", false, nil
	}
	if len(req.Args) < cmd.MinArgs {
		return UsageLine(name, cmd), true, fmt.Errorf("/%s: %w", name, ErrUsage)
	}
	req.Name = name
	reply, err = cmd.Handler(ctx, req)
	if errors.Is(err, ErrUsage) {
		return UsageLine(name, cmd), true, err
	}
	return reply, true, err
}

// UsageLine renders "Usage: /name <args>".
func UsageLine(name string, cmd Command) string {
	line := "Usage: /" + name
	if cmd.Usage != "" {
		line += " " + cmd.Usage
	}
	return html.EscapeString(line)
}
