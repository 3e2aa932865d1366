package cog

import (
	"context"
	"fmt"
	"iter"
	"maps"
	"slices"
	"sync"

	"go.uber.org/zap"

	"cogbot/internal/domain"
	"cogbot/internal/ports/output"
)

const loaderComponent = "cogloader"

// Resolver is the part of the container the loader needs.
type Resolver interface {
	Resolve(id string) (any, error)
}

// Report summarizes a LoadAll run.
type Report struct {
	Loaded []string
	Failed map[string]error
}

// Loader constructs cogs from their descriptors and registers their
// handlers. A cog that fails to load is reported and skipped.
type Loader struct {
	resolver   Resolver
	dispatcher *Dispatcher
	sink       output.ErrorSink
	logger     *zap.Logger

	mu     sync.Mutex
	loaded map[string]Descriptor
}

func NewLoader(resolver Resolver, dispatcher *Dispatcher, sink output.ErrorSink, logger *zap.Logger) *Loader {
	return &Loader{
		resolver:   resolver,
		dispatcher: dispatcher,
		sink:       sink,
		logger:     logger.Named(loaderComponent),
		loaded:     make(map[string]Descriptor),
	}
}

// LoadAll loads every descriptor in order. A failing cog never stops the
// run.
func (l *Loader) LoadAll(ctx context.Context, descriptors iter.Seq[Descriptor]) Report {
	report := Report{Failed: make(map[string]error)}
	for d := range descriptors {
		if err := l.Load(ctx, d); err != nil {
			report.Failed[d.Name] = err
			continue
		}
		report.Loaded = append(report.Loaded, d.Name)
	}
	l.logger.Info("cogs loaded",
		zap.Strings("loaded", report.Loaded),
		zap.Int("failed", len(report.Failed)))
	return report
}

// Load resolves the cog dependencies, constructs it and registers its
// handlers. Every failure is returned as a ConfigurationError and reported
// to the error sink.
func (l *Loader) Load(ctx context.Context, d Descriptor) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.load(ctx, d); err != nil {
		cfgErr := &domain.ConfigurationError{Op: "load cog " + d.Name, Err: err}
		l.sink.Report(domain.NewEnvelope(loaderComponent, domain.SeverityError,
			fmt.Sprintf("cog %s not loaded", d.Name), cfgErr))
		return cfgErr
	}
	l.logger.Debug("cog loaded", zap.String("cog", d.Name))
	return nil
}

func (l *Loader) load(ctx context.Context, d Descriptor) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := l.loaded[d.Name]; ok {
		return fmt.Errorf("cog %q is already loaded", d.Name)
	}
	if d.New == nil {
		return fmt.Errorf("cog %q has no constructor", d.Name)
	}

	args := make([]any, 0, len(d.Requires))
	for _, id := range d.Requires {
		v, err := l.resolver.Resolve(id)
		if err != nil {
			return err
		}
		args = append(args, v)
	}

	c, err := construct(d, args)
	if err != nil {
		return err
	}
	if err := l.dispatcher.Register(d.Name, c.Handlers()); err != nil {
		return err
	}
	l.loaded[d.Name] = d
	return nil
}

func construct(d Descriptor, args []any) (c Cog, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("constructor panicked: %v", r)
		}
	}()
	c, err = d.New(args)
	if err == nil && c == nil {
		err = fmt.Errorf("constructor returned no cog")
	}
	return c, err
}

// Unload removes every handler of the named cog.
func (l *Loader) Unload(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.loaded[name]; !ok {
		return false
	}
	removed := l.dispatcher.Unregister(name)
	delete(l.loaded, name)
	l.logger.Info("cog unloaded", zap.String("cog", name), zap.Int("handlers", removed))
	return true
}

// Reload unloads the named cog and loads it again from its descriptor.
func (l *Loader) Reload(ctx context.Context, name string) error {
	l.mu.Lock()
	d, ok := l.loaded[name]
	l.mu.Unlock()
	if !ok {
		return &domain.ConfigurationError{Op: "reload cog " + name, Err: fmt.Errorf("cog %q is not loaded", name)}
	}
	l.Unload(name)
	return l.Load(ctx, d)
}

// Loaded lists the loaded cogs in lexicographic order.
func (l *Loader) Loaded() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Sorted(maps.Keys(l.loaded))
}
