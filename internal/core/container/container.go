// Package container is the dependency-injection registry owned by the
// Application. Bindings declare their dependencies by identifier; the graph
// is checked for cycles when an identifier is first resolved.
package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
)

// Lifetime controls instance sharing.
type Lifetime int

const (
	// Singleton bindings are constructed once and cached.
	Singleton Lifetime = iota
	// Transient bindings are constructed on every resolution.
	Transient
)

func (l Lifetime) String() string {
	if l == Transient {
		return "transient"
	}
	return "singleton"
}

// Factory builds an instance from its resolved dependencies, passed in the
// order they were declared at registration.
type Factory func(args []any) (any, error)

// Releaser is implemented by singletons holding resources that must be
// released on shutdown. io.Closer is accepted as well.
type Releaser interface {
	Close(ctx context.Context) error
}

type binding struct {
	id       string
	lifetime Lifetime
	deps     []string
	factory  Factory

	// acyclic is set once the graph below this binding has been verified.
	acyclic atomic.Bool

	mu       sync.Mutex
	built    atomic.Bool
	instance any
}

// Container resolves identifiers to instances.
type Container struct {
	mu       sync.RWMutex
	bindings map[string]*binding
	closed   bool

	createdMu sync.Mutex
	created   []*binding
}

// New returns an empty container.
func New() *Container {
	return &Container{bindings: make(map[string]*binding)}
}

// Register binds id to factory. deps are resolved, in order, and handed to
// factory. Registration does not check that deps exist.
func (c *Container) Register(id string, lifetime Lifetime, factory Factory, deps ...string) error {
	if id == "" {
		return errors.New("container: empty binding id")
	}
	if factory == nil {
		return fmt.Errorf("container: nil factory for %q", id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.bindings[id]; ok {
		return &DuplicateBindingError{ID: id}
	}
	c.bindings[id] = &binding{
		id:       id,
		lifetime: lifetime,
		deps:     slices.Clone(deps),
		factory:  factory,
	}
	return nil
}

// RegisterInstance binds id to an already built singleton. The instance is
// released on Close like any constructed singleton.
func (c *Container) RegisterInstance(id string, instance any) error {
	err := c.Register(id, Singleton, func([]any) (any, error) { return instance, nil })
	if err != nil {
		return err
	}
	_, err = c.Resolve(id)
	return err
}

// Has reports whether id is bound.
func (c *Container) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.bindings[id]
	return ok
}

// IDs returns every bound identifier, sorted.
func (c *Container) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.bindings))
	for id := range c.bindings {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (c *Container) lookup(id string) (*binding, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, false, ErrClosed
	}
	b, ok := c.bindings[id]
	return b, ok, nil
}

// Resolve returns the instance bound to id.
func (c *Container) Resolve(id string) (any, error) {
	b, ok, err := c.lookup(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &UnresolvedDependencyError{ID: id, Path: []string{id}}
	}
	if !b.acyclic.Load() {
		if err := c.verify(id, nil, map[string]bool{}); err != nil {
			return nil, err
		}
	}
	return c.build(b, []string{id})
}

// verify walks the declared dependencies of id depth first. Any cycle or
// missing binding is reported before a single factory runs, so concurrent
// singleton construction can never wait on itself.
func (c *Container) verify(id string, path []string, done map[string]bool) error {
	if slices.Contains(path, id) {
		cycle := append(slices.Clone(path[slices.Index(path, id):]), id)
		return &CircularDependencyError{Path: cycle}
	}
	if done[id] {
		return nil
	}
	path = append(path, id)
	b, ok, err := c.lookup(id)
	if err != nil {
		return err
	}
	if !ok {
		return &UnresolvedDependencyError{ID: id, Path: slices.Clone(path)}
	}
	if !b.acyclic.Load() {
		for _, dep := range b.deps {
			if err := c.verify(dep, path, done); err != nil {
				return err
			}
		}
		b.acyclic.Store(true)
	}
	done[id] = true
	return nil
}

func (c *Container) build(b *binding, path []string) (any, error) {
	if b.lifetime == Transient {
		return c.construct(b, path)
	}
	if b.built.Load() {
		return b.instance, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.built.Load() {
		return b.instance, nil
	}
	instance, err := c.construct(b, path)
	if err != nil {
		return nil, err
	}
	b.instance = instance
	b.built.Store(true)

	c.createdMu.Lock()
	c.created = append(c.created, b)
	c.createdMu.Unlock()
	return instance, nil
}

func (c *Container) construct(b *binding, path []string) (instance any, err error) {
	args := make([]any, len(b.deps))
	for i, dep := range b.deps {
		if slices.Contains(path, dep) {
			return nil, &CircularDependencyError{Path: append(slices.Clone(path), dep)}
		}
		db, ok, lerr := c.lookup(dep)
		if lerr != nil {
			return nil, lerr
		}
		if !ok {
			return nil, &UnresolvedDependencyError{ID: dep, Path: append(slices.Clone(path), dep)}
		}
		v, derr := c.build(db, append(path, dep))
		if derr != nil {
			return nil, derr
		}
		args[i] = v
	}

	defer func() {
		if r := recover(); r != nil {
			instance = nil
			err = &ConstructionError{ID: b.id, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	instance, err = b.factory(args)
	if err != nil {
		return nil, &ConstructionError{ID: b.id, Err: err}
	}
	return instance, nil
}

// Close releases constructed singletons in reverse creation order. Every
// releaser is called even if an earlier one fails; errors are joined.
func (c *Container) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.createdMu.Lock()
	created := slices.Clone(c.created)
	c.createdMu.Unlock()

	var errs []error
	for i := len(created) - 1; i >= 0; i-- {
		b := created[i]
		switch r := b.instance.(type) {
		case Releaser:
			if err := r.Close(ctx); err != nil {
				errs = append(errs, fmt.Errorf("release %q: %w", b.id, err))
			}
		case io.Closer:
			if err := r.Close(); err != nil {
				errs = append(errs, fmt.Errorf("release %q: %w", b.id, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Get resolves id and asserts it to T.
func Get[T any](c *Container, id string) (T, error) {
	var zero T
	v, err := c.Resolve(id)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, &TypeMismatchError{ID: id, Want: typeName[T](), Got: fmt.Sprintf("%T", v)}
	}
	return t, nil
}

// Arg asserts the i-th factory argument to T.
func Arg[T any](args []any, i int) (T, error) {
	var zero T
	if i < 0 || i >= len(args) {
		return zero, fmt.Errorf("container: argument %d out of range (%d args)", i, len(args))
	}
	t, ok := args[i].(T)
	if !ok {
		return zero, &TypeMismatchError{ID: fmt.Sprintf("arg[%d]", i), Want: typeName[T](), Got: fmt.Sprintf("%T", args[i])}
	}
	return t, nil
}

func typeName[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}
