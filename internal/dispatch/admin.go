package dispatch

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/m3rciful/taxibot/core/logger"
	"github.com/m3rciful/taxibot/core/telegram/commands"
	"github.com/m3rciful/taxibot/internal/channel"
	"github.com/m3rciful/taxibot/internal/claim"
	"github.com/m3rciful/taxibot/internal/registry"
)

func (r *Router) registerAdmin() {
	c := r.commands
	c.Register("start", commands.Command{
		Handler:     r.cmdHelp,
		Description: "Show the admin panel",
		Aliases:     []string{"admin", "help"},
	})
	c.Register("add_frontend", commands.Command{
		Handler:     r.cmdAddFrontEnd,
		Description: "Register a customer bot and start it",
		Usage:       "<token> <name>",
		MinArgs:     2,
		Aliases:     []string{"add_clone_bot"},
	})
	c.Register("list_frontends", commands.Command{
		Handler:     r.cmdListFrontEnds,
		Description: "List registered customer bots",
		Aliases:     []string{"list_clone_bots"},
	})
	c.Register("remove_frontend", commands.Command{
		Handler:     r.cmdRemoveFrontEnd,
		Description: "Stop and remove a customer bot",
		Usage:       "<token>",
		MinArgs:     1,
		Aliases:     []string{"delete_clone_bot"},
	})
	c.Register("add_route", commands.Command{
		Handler:     r.cmdAddRoute,
		Description: "Add a route, e.g. CityA→CityB",
		Usage:       "<name>",
		MinArgs:     1,
	})
	c.Register("list_routes", commands.Command{
		Handler:     r.cmdListRoutes,
		Description: "List routes and their topics",
	})
	c.Register("link_route", commands.Command{
		Handler:     r.cmdLinkRoute,
		Description: "Link a route to a topic of the driver group",
		Usage:       "<name> <topic_id>",
		MinArgs:     2,
	})
	c.Register("remove_route", commands.Command{
		Handler:     r.cmdRemoveRoute,
		Description: "Delete a route",
		Usage:       "<name>",
		MinArgs:     1,
		Aliases:     []string{"delete_route"},
	})
	c.Register("list_pending", commands.Command{
		Handler:     r.cmdListPending,
		Description: "List orders nobody has accepted yet",
		Aliases:     []string{"list_pending_orders"},
	})
}

func (r *Router) cmdHelp(_ context.Context, _ commands.Request) (string, error) {
	var b strings.Builder
	b.WriteString("<b>Admin Panel</b>\n\n")
	for _, e := range r.commands.List(true) {
		if e.Name == "start" {
			continue
		}
		line := "/" + e.Name
		if e.Usage != "" {
			line += " " + e.Usage
		}
		fmt.Fprintf(&b, "%s - %s\n", html.EscapeString(line), html.EscapeString(e.Description))
	}
	return b.String(), nil
}

func (r *Router) cmdAddFrontEnd(ctx context.Context, req commands.Request) (string, error) {
	token := req.Args[0]
	name := strings.Join(req.Args[1:], " ")
	fe, err := r.registry.AddFrontEnd(token, name)
	switch {
	case errors.Is(err, registry.ErrExists), errors.Is(err, registry.ErrPrivileged):
		return "A bot with this token is already registered.", err
	case err != nil:
		return "", fmt.Errorf("add front-end: %w", commands.ErrUsage)
	}
	logger.Info(ctx, logger.CompRegistry, "frontend.added",
		slog.String("frontend", fe.Name),
		slog.String("token", registry.Redact(fe.Token)),
	)

	if r.fleet == nil {
		return fmt.Sprintf("Bot <b>%s</b> registered. It starts with the next restart.", html.EscapeString(fe.Name)), nil
	}
	if err := r.fleet.Attach(fe); err != nil {
		_ = r.registry.SetActive(fe.Token, false)
		logger.Warn(ctx, logger.CompWire, "frontend.skipped",
			slog.String("frontend", fe.Name),
			slog.String("err", err.Error()),
		)
		return fmt.Sprintf("Bot <b>%s</b> registered but could not start: %s",
			html.EscapeString(fe.Name), html.EscapeString(err.Error())), err
	}
	return fmt.Sprintf("Bot <b>%s</b> added and running.", html.EscapeString(fe.Name)), nil
}

func (r *Router) cmdListFrontEnds(_ context.Context, _ commands.Request) (string, error) {
	var b strings.Builder
	running := map[string]bool{}
	if r.fleet != nil {
		for _, name := range r.fleet.Running() {
			running[name] = true
		}
	}
	for _, fe := range r.registry.FrontEnds() {
		if fe.Privileged {
			continue
		}
		if b.Len() == 0 {
			b.WriteString("<b>Registered Bots:</b>\n")
		}
		fmt.Fprintf(&b, "- <code>%s</code> | <b>%s</b> (active: %t, running: %t)\n",
			html.EscapeString(registry.Redact(fe.Token)), html.EscapeString(fe.Name), fe.Active, running[fe.Name])
	}
	if b.Len() == 0 {
		return "No customer bots registered.", nil
	}
	return b.String(), nil
}

func (r *Router) cmdRemoveFrontEnd(ctx context.Context, req commands.Request) (string, error) {
	token := req.Args[0]
	fe, err := r.registry.RemoveFrontEnd(token)
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return "No bot with this token.", err
	case errors.Is(err, registry.ErrPrivileged):
		return "The main bot cannot be removed.", err
	case err != nil:
		return "", err
	}
	if r.fleet != nil {
		if err := r.fleet.Detach(token); err != nil && !errors.Is(err, ErrDetached) {
			logger.Warn(ctx, logger.CompWire, "loop.stop_failed",
				slog.String("frontend", fe.Name),
				slog.String("err", err.Error()),
			)
		}
	}
	logger.Info(ctx, logger.CompRegistry, "frontend.removed", slog.String("frontend", fe.Name))
	return fmt.Sprintf("Bot <b>%s</b> removed.", html.EscapeString(fe.Name)), nil
}

func (r *Router) cmdAddRoute(ctx context.Context, req commands.Request) (string, error) {
	name := strings.Join(req.Args, " ")
	route, err := r.registry.AddRoute(name)
	if errors.Is(err, registry.ErrExists) {
		return fmt.Sprintf("Route <b>%s</b> already exists.", html.EscapeString(name)), err
	}
	if err != nil {
		return "", err
	}
	logger.Info(ctx, logger.CompRegistry, "route.added", slog.String("route", route.Name))
	return fmt.Sprintf("Route <b>%s</b> added.", html.EscapeString(route.Name)), nil
}

func (r *Router) cmdListRoutes(_ context.Context, _ commands.Request) (string, error) {
	routes := r.registry.Routes()
	if len(routes) == 0 {
		return "No routes registered.", nil
	}
	var b strings.Builder
	b.WriteString("<b>Registered Routes:</b>\n")
	for _, route := range routes {
		info := " (<b>NOT LINKED</b>)"
		if route.Bound() {
			info = fmt.Sprintf(" (topic <code>%s</code>)", html.EscapeString(route.Channel))
		}
		fmt.Fprintf(&b, "- <b>%s</b>%s\n", html.EscapeString(route.Name), info)
	}
	return b.String(), nil
}

func (r *Router) cmdLinkRoute(ctx context.Context, req commands.Request) (string, error) {
	last := len(req.Args) - 1
	name := strings.Join(req.Args[:last], " ")
	ch := req.Args[last]
	route, created, err := r.registry.LinkRoute(name, ch)
	switch {
	case errors.Is(err, channel.ErrInvalidTopic):
		return fmt.Sprintf("Invalid topic id <code>%s</code>. Must be a positive integer, e.g. <code>9</code> or <code>topic-9</code>.",
			html.EscapeString(ch)), nil
	case err != nil:
		return "", fmt.Errorf("link route: %w", commands.ErrUsage)
	}
	logger.Info(ctx, logger.CompRegistry, "route.linked",
		slog.String("route", route.Name),
		slog.String("channel", route.Channel),
		slog.Bool("created", created),
	)
	return fmt.Sprintf("Route <b>%s</b> linked to topic <code>%s</code>.",
		html.EscapeString(route.Name), html.EscapeString(route.Channel)), nil
}

func (r *Router) cmdRemoveRoute(ctx context.Context, req commands.Request) (string, error) {
	name := strings.Join(req.Args, " ")
	if err := r.registry.RemoveRoute(name); err != nil {
		return fmt.Sprintf("Route <b>%s</b> not found.", html.EscapeString(name)), err
	}
	logger.Info(ctx, logger.CompRegistry, "route.removed", slog.String("route", name))
	return fmt.Sprintf("Route <b>%s</b> deleted.", html.EscapeString(name)), nil
}

func (r *Router) cmdListPending(_ context.Context, _ commands.Request) (string, error) {
	pending := r.orders.Claimable()
	if len(pending) == 0 {
		return "No pending orders.", nil
	}
	var b strings.Builder
	b.WriteString("<b>Pending Orders:</b>\n")
	for _, o := range pending {
		source := "unknown"
		if fe, ok := r.registry.FrontEnd(o.FrontEnd); ok {
			source = fe.Name
		}
		fmt.Fprintf(&b, "ID: <code>%s</code>\nFrom: %s\nTo: %s\nPhone: %s\nStatus: %s\nBot: %s\n\n",
			claim.ShortID(o.ID),
			html.EscapeString(o.Origin),
			html.EscapeString(o.Destination),
			html.EscapeString(o.Contact),
			o.Status,
			html.EscapeString(source),
		)
	}
	return b.String(), nil
}
