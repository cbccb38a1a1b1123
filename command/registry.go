// Package command holds slash-command definitions and the registry that
// routes invocations to them.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Sentinel errors returned by the registry.
var (
	// ErrDuplicateCommand is returned when a command name is already registered.
	ErrDuplicateCommand = errors.New("command: duplicate command name")

	// ErrCommandNotFound is returned when a command name is not registered.
	ErrCommandNotFound = errors.New("command: command not found")

	// ErrInvalidDefinition is returned for structurally invalid definitions.
	ErrInvalidDefinition = errors.New("command: invalid definition")
)

// DuplicateCommandError reports a name collision during registration.
type DuplicateCommandError struct {
	Name string
}

func (e *DuplicateCommandError) Error() string {
	return fmt.Sprintf("command: %q is already registered", e.Name)
}

// Unwrap lets errors.Is match ErrDuplicateCommand.
func (e *DuplicateCommandError) Unwrap() error { return ErrDuplicateCommand }

// Registry maps command names to definitions.
// It is populated once at start and read concurrently afterwards.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Definition
	order  []string
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byName: make(map[string]*Definition),
		logger: logger,
	}
}

// Register adds a definition. It never replaces an existing entry.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidDefinition)
	}
	if def.Handler == nil {
		return fmt.Errorf("%w: %q has no handler", ErrInvalidDefinition, def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[def.Name]; ok {
		return &DuplicateCommandError{Name: def.Name}
	}

	d := def
	d.Params = append([]Param(nil), def.Params...)
	r.byName[def.Name] = &d
	r.order = append(r.order, def.Name)
	return nil
}

// Load registers every definition, logging and skipping the ones that fail.
// It returns the number of definitions that were added.
func (r *Registry) Load(ctx context.Context, defs ...Definition) int {
	loaded := 0
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			r.logger.ErrorContext(ctx, "command load failed", "command", def.Name, "error", err)
			continue
		}
		loaded++
		r.logger.DebugContext(ctx, "command loaded", "command", def.Name)
	}
	r.logger.InfoContext(ctx, "commands loaded", "loaded", loaded, "total", r.Len())
	return loaded
}

// Resolve returns the definition registered under name.
func (r *Registry) Resolve(name string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCommandNotFound, name)
	}
	return def, nil
}

// All returns every definition in registration order.
func (r *Registry) All() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.byName[name])
	}
	return out
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}
