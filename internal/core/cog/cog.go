// Package cog loads command modules and routes platform events to their
// handlers.
package cog

import (
	"context"

	"cogbot/internal/ports/output"
)

// Trigger selects the events a handler reacts to. Command triggers match a
// single command name and are exclusive; event triggers fan out to every
// handler registered for the event type.
type Trigger struct {
	Event   output.EventType
	Command string
}

// OnCommand matches the named slash command.
func OnCommand(name string) Trigger {
	return Trigger{Event: output.EventCommand, Command: name}
}

// OnEvent matches every event of type t.
func OnEvent(t output.EventType) Trigger {
	return Trigger{Event: t}
}

func (t Trigger) exclusive() bool { return t.Event == output.EventCommand }

func (t Trigger) String() string {
	if t.exclusive() {
		return "/" + t.Command
	}
	return string(t.Event)
}

func triggerOf(ev output.Event) Trigger {
	if ev.Type == output.EventCommand {
		return OnCommand(ev.Command)
	}
	return OnEvent(ev.Type)
}

// Result is what a handler produced. A nil Reply sends nothing.
type Result struct {
	Reply *output.Response
}

// Reply is a shorthand for a Result carrying resp.
func Reply(resp output.Response) Result {
	return Result{Reply: &resp}
}

// CommandHandler is one entry point of a cog.
type CommandHandler interface {
	Name() string
	Trigger() Trigger
	Invoke(ctx context.Context, ev output.Event) (Result, error)
}

// SpecProvider is implemented by command handlers that must be registered
// with the platform.
type SpecProvider interface {
	Spec() output.CommandSpec
}

// Cog is a constructed command module.
type Cog interface {
	Handlers() []CommandHandler
}

// InvokeFunc adapts a function to a handler body.
type InvokeFunc func(ctx context.Context, ev output.Event) (Result, error)

type funcHandler struct {
	name    string
	trigger Trigger
	spec    *output.CommandSpec
	invoke  InvokeFunc
}

func (h *funcHandler) Name() string     { return h.name }
func (h *funcHandler) Trigger() Trigger { return h.trigger }

func (h *funcHandler) Invoke(ctx context.Context, ev output.Event) (Result, error) {
	return h.invoke(ctx, ev)
}

type specHandler struct {
	funcHandler
}

func (h *specHandler) Spec() output.CommandSpec { return *h.spec }

// Command builds a slash command handler registered under spec.Name.
func Command(spec output.CommandSpec, fn InvokeFunc) CommandHandler {
	return &specHandler{funcHandler{
		name:    spec.Name,
		trigger: OnCommand(spec.Name),
		spec:    &spec,
		invoke:  fn,
	}}
}

// Listener builds a handler for a non-command event.
func Listener(name string, event output.EventType, fn InvokeFunc) CommandHandler {
	return &funcHandler{name: name, trigger: OnEvent(event), invoke: fn}
}
