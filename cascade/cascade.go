// Package cascade keeps embedded copies of documents in sync with their
// source. When a source entity is embedded inside other entities for read
// efficiency, a binding registered here listens to the source's lifecycle
// events and pushes every save into the embedding documents, and clears
// them on delete. Bindings can watch a subset of fields so saves that
// change nothing interesting skip propagation entirely.
package cascade

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/embedsync/cascade/entity"
	"github.com/embedsync/cascade/logger"
	"github.com/embedsync/cascade/signal"
	"github.com/embedsync/cascade/store"
	"github.com/embedsync/cascade/tracker"
)

// ErrDuplicateBinding means a binding for the same (source type, field)
// pair was already registered.
var ErrDuplicateBinding = errors.New("duplicate cascade binding")

// Event is passed to pre/post hooks around each individual target update
type Event struct {
	// Source is the instance whose save or delete triggered propagation
	Source *entity.Instance
	// Target is the instance embedding the source
	Target *entity.Instance
	// Created is the created flag of the triggering save event
	Created bool
	// Change is a JSON merge patch of the embedded field's before/after
	// state. Only set on post hooks.
	Change []byte
	// Err is the failure of this target's apply/persist step, nil on
	// success. Only set on post hooks.
	Err error
}

// Hook runs around one target update. A pre hook error aborts that
// target's update before persistence; post hooks run unconditionally,
// even when persistence failed.
type Hook func(ctx context.Context, ev Event) error

// SaveOverride fully replaces the generated save propagation routine
type SaveOverride func(ctx context.Context, ev signal.SaveEvent) error

// DeleteOverride fully replaces the generated delete propagation routine
type DeleteOverride func(ctx context.Context, ev signal.DeleteEvent) error

// Options configures a binding. The zero value propagates every save and
// delete with no hooks and no watch.
type Options struct {
	// WatchFields limits propagation to saves that changed at least one
	// of the named fields. Mutually exclusive with WatchExpr.
	WatchFields []string
	// WatchExpr is a CEL projection over the source document (variable
	// "doc", must evaluate to a string); propagation runs only when the
	// projected value changed. Mutually exclusive with WatchFields.
	WatchExpr string

	PreSave  Hook
	PostSave Hook
	// OverrideSave replaces the whole per-save routine
	OverrideSave SaveOverride
	// DisableSave registers no save listener at all
	DisableSave bool

	PreDelete  Hook
	PostDelete Hook
	// OverrideDelete replaces the whole per-delete routine
	OverrideDelete DeleteOverride
	// DisableDelete registers no delete listener at all
	DisableDelete bool
}

// Engine owns all bindings and their collaborators
type Engine struct {
	registry *entity.Registry
	store    store.Store
	signals  *signal.Dispatcher
	tracker  *tracker.Tracker
	log      *logger.Logger

	mu       sync.Mutex
	bindings map[string]*Binding
}

// New creates an engine
func New(registry *entity.Registry, st store.Store, signals *signal.Dispatcher, tr *tracker.Tracker, log *logger.Logger) *Engine {
	return &Engine{
		registry: registry,
		store:    st,
		signals:  signals,
		tracker:  tr,
		log:      log,
		bindings: make(map[string]*Binding),
	}
}

// Bind registers a scalar-field binding: targetRef's field holds a single
// embedded copy of source instances. target may be a *entity.Type or a
// (possibly unqualified) name string. Registering attaches lifecycle
// listeners to the source type as a side effect.
func (e *Engine) Bind(source *entity.Type, target any, field string, opts Options) (*Binding, error) {
	return e.bind(source, target, field, opts, scalarStrategy{})
}

// BindCollection registers a collection-field binding: targetRef's field
// holds a list or set of embedded copies, matched by identity.
func (e *Engine) BindCollection(source *entity.Type, target any, field string, opts Options) (*Binding, error) {
	return e.bind(source, target, field, opts, collectionStrategy{})
}

func (e *Engine) bind(source *entity.Type, target any, field string, opts Options, strat strategy) (*Binding, error) {
	watch, err := buildWatch(opts)
	if err != nil {
		return nil, err
	}

	b := &Binding{
		engine:    e,
		source:    source,
		targetRef: target,
		field:     field,
		strategy:  strat,
		watch:     watch,
		opts:      opts,
		log:       e.log.WithBinding(source.Qualified() + "/" + field),
	}

	e.mu.Lock()
	if _, exists := e.bindings[b.key()]; exists {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateBinding, b.key())
	}
	e.bindings[b.key()] = b
	e.mu.Unlock()

	switch {
	case opts.DisableSave:
		// No save listener at all
	case opts.OverrideSave != nil:
		e.signals.AfterSave(source, signal.SaveListener(opts.OverrideSave))
	default:
		e.signals.AfterSave(source, b.onSave)
	}

	switch {
	case opts.DisableDelete:
		// No delete listener at all
	case opts.OverrideDelete != nil:
		e.signals.AfterDelete(source, signal.DeleteListener(opts.OverrideDelete))
	default:
		e.signals.AfterDelete(source, b.onDelete)
	}

	if watch != nil {
		e.signals.AfterConstruct(source, b.onConstruct)
	}

	b.log.Debug("cascade binding registered", "target", fmt.Sprint(target))
	return b, nil
}

func buildWatch(opts Options) (*tracker.Watch, error) {
	if len(opts.WatchFields) > 0 && opts.WatchExpr != "" {
		return nil, errors.New("watch fields and watch expression are mutually exclusive")
	}
	if len(opts.WatchFields) > 0 {
		return tracker.Fields(opts.WatchFields...), nil
	}
	if opts.WatchExpr != "" {
		return tracker.Expr(opts.WatchExpr)
	}
	return nil, nil
}

// Binding ties one source type to one embedding field of a target type.
// Created once during application wiring and immutable afterwards.
type Binding struct {
	engine    *Engine
	source    *entity.Type
	targetRef any
	field     string
	strategy  strategy
	watch     *tracker.Watch
	opts      Options
	log       *logger.Logger
}

func (b *Binding) key() string {
	return b.source.Qualified() + "/" + b.field
}

// Field returns the embedded field name of the binding
func (b *Binding) Field() string {
	return b.field
}

// Source returns the source type of the binding
func (b *Binding) Source() *entity.Type {
	return b.source
}

// onConstruct snapshots the watch digest right after an instance is
// constructed
func (b *Binding) onConstruct(ctx context.Context, inst *entity.Instance) error {
	return b.engine.tracker.Record(ctx, inst, b.watch)
}

// onSave is the generated save propagation routine
func (b *Binding) onSave(ctx context.Context, ev signal.SaveEvent) error {
	// A newly created instance has no embedded copies yet
	if ev.Created {
		return nil
	}

	if b.watch != nil {
		changed, digest, err := b.engine.tracker.Changed(ctx, ev.Instance, b.watch)
		if err != nil {
			return fmt.Errorf("change check for %s: %w", ev.Instance, err)
		}
		if !changed {
			return nil
		}
		if err := b.engine.tracker.Commit(ctx, ev.Instance, digest); err != nil {
			return fmt.Errorf("commit digest for %s: %w", ev.Instance, err)
		}
	}

	targets, err := b.locateTargets(ctx, ev.Instance)
	if err != nil {
		return err
	}
	defer targets.Stop()

	var errs []error
	for {
		tgt, err := targets.Next(ctx)
		if errors.Is(err, store.ErrIteratorDone) {
			break
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("iterate targets: %w", err))
			break
		}
		if err := b.applyToTarget(ctx, tgt, ev.Instance, ev.Created, false); err != nil {
			// Keep processing the remaining targets
			errs = append(errs, fmt.Errorf("target %s: %w", tgt, err))
		}
	}
	return errors.Join(errs...)
}

// onDelete is the generated delete propagation routine
func (b *Binding) onDelete(ctx context.Context, ev signal.DeleteEvent) error {
	targets, err := b.locateTargets(ctx, ev.Instance)
	if err != nil {
		return err
	}
	defer targets.Stop()

	var errs []error
	for {
		tgt, err := targets.Next(ctx)
		if errors.Is(err, store.ErrIteratorDone) {
			break
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("iterate targets: %w", err))
			break
		}
		if err := b.applyToTarget(ctx, tgt, ev.Instance, false, true); err != nil {
			errs = append(errs, fmt.Errorf("target %s: %w", tgt, err))
		}
	}

	if b.watch != nil {
		if err := b.engine.tracker.Forget(ctx, ev.Instance); err != nil {
			errs = append(errs, fmt.Errorf("forget digest for %s: %w", ev.Instance, err))
		}
	}
	return errors.Join(errs...)
}

func (b *Binding) locateTargets(ctx context.Context, src *entity.Instance) (store.Iterator, error) {
	targetType, err := b.engine.registry.Resolve(b.source, b.targetRef)
	if err != nil {
		return nil, fmt.Errorf("resolve target of %s: %w", b.key(), err)
	}

	it, err := b.engine.store.FindByEmbeddedID(ctx, targetType, b.field, src.ID)
	if err != nil {
		return nil, fmt.Errorf("locate targets of %s: %w", b.key(), err)
	}
	return it, nil
}

// applyToTarget updates (or clears) the embedded copy inside one target
// and persists it. The post hook runs even when apply or persist failed,
// and sees the failure in Event.Err.
func (b *Binding) applyToTarget(ctx context.Context, tgt *entity.Instance, src *entity.Instance, created, remove bool) error {
	pre, post := b.opts.PreSave, b.opts.PostSave
	if remove {
		pre, post = b.opts.PreDelete, b.opts.PostDelete
	}

	ev := Event{Source: src, Target: tgt, Created: created}
	if pre != nil {
		if err := pre(ctx, ev); err != nil {
			return fmt.Errorf("pre hook: %w", err)
		}
	}

	before := b.fieldSnapshot(tgt)

	err := func() error {
		if err := b.strategy.apply(tgt, b.field, src, remove); err != nil {
			return err
		}
		if _, err := b.engine.store.Save(ctx, tgt); err != nil {
			return fmt.Errorf("persist target: %w", err)
		}
		return nil
	}()

	if post != nil {
		ev.Err = err
		ev.Change = b.mergePatch(before, tgt)
		if postErr := post(ctx, ev); postErr != nil {
			err = errors.Join(err, fmt.Errorf("post hook: %w", postErr))
		}
	}
	return err
}

// fieldSnapshot captures the embedded field as a one-key JSON object so
// before/after states diff as objects even when the field holds a list
func (b *Binding) fieldSnapshot(tgt *entity.Instance) []byte {
	buf, err := json.Marshal(map[string]any{b.field: tgt.Field(b.field)})
	if err != nil {
		b.log.Warn("embedded field not serializable", "error", err)
		return nil
	}
	return buf
}

func (b *Binding) mergePatch(before []byte, tgt *entity.Instance) []byte {
	if before == nil {
		return nil
	}
	after := b.fieldSnapshot(tgt)
	if after == nil {
		return nil
	}
	patch, err := jsonpatch.CreateMergePatch(before, after)
	if err != nil {
		b.log.Warn("failed to build merge patch", "error", err)
		return nil
	}
	return patch
}
