package snac

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/opd-ai/oscarcore/limits"
	"github.com/opd-ai/oscarcore/logging"
)

var (
	// ErrDuplicateFactory is returned when two factories claim the same key.
	ErrDuplicateFactory = errors.New("duplicate factory for key")

	// ErrNoKeys is returned when a factory declares no keys.
	ErrNoKeys = errors.New("factory declares no keys")
)

// DecodeError wraps a failure to build a typed command from a recognized envelope.
type DecodeError struct {
	Key Key
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("snac %s: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Factory builds typed commands for the keys it declares.
type Factory interface {
	// Keys lists every key New accepts.
	Keys() []Key
	// New builds a command from an envelope whose key is in Keys.
	New(env *Envelope) (Command, error)
}

// ConstructorFunc builds a command from an envelope.
type ConstructorFunc func(env *Envelope) (Command, error)

type funcFactory struct {
	keys []Key
	fn   ConstructorFunc
}

func (f funcFactory) Keys() []Key                        { return f.keys }
func (f funcFactory) New(env *Envelope) (Command, error) { return f.fn(env) }

// NewFactory adapts a constructor function to a Factory for keys.
func NewFactory(fn ConstructorFunc, keys ...Key) Factory {
	return funcFactory{keys: keys, fn: fn}
}

// Registry maps keys to factories. Registration normally happens once at
// startup; Dispatch is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	name      string
	factories map[Key]Factory
}

// NewRegistry creates an empty registry. The name appears in log output.
func NewRegistry(name string) *Registry {
	return &Registry{
		name:      name,
		factories: make(map[Key]Factory),
	}
}

// Name returns the registry name.
func (r *Registry) Name() string { return r.name }

// Register adds every key f declares. Nothing is registered if any key is
// already taken or declared twice by f.
func (r *Registry) Register(f Factory) error {
	keys := f.Keys()
	if len(keys) == 0 {
		return ErrNoKeys
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[Key]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			return fmt.Errorf("%w %s in registry %q (declared twice)", ErrDuplicateFactory, k, r.name)
		}
		if _, taken := r.factories[k]; taken {
			return fmt.Errorf("%w %s in registry %q", ErrDuplicateFactory, k, r.name)
		}
		seen[k] = struct{}{}
	}
	for _, k := range keys {
		r.factories[k] = f
	}

	logging.NewLogger("snac", "Registry.Register").
		WithField("registry", r.name).
		WithField("keys", len(keys)).
		Debug("Registered factory")
	return nil
}

// RegisterFunc registers a single constructor for key.
func (r *Registry) RegisterFunc(key Key, fn ConstructorFunc) error {
	return r.Register(NewFactory(fn, key))
}

// Keys returns every registered key in ascending order.
func (r *Registry) Keys() []Key {
	r.mu.RLock()
	out := make([]Key, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Lookup returns the factory registered for key.
func (r *Registry) Lookup(key Key) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[key]
	return f, ok
}

// Dispatch builds the typed command for env. Keys with no factory yield
// an *Unrecognized holding its own copy of the bytes, and a nil error. A
// factory failure is returned as a *DecodeError.
func (r *Registry) Dispatch(env *Envelope) (Command, error) {
	key := env.Key()
	f, ok := r.Lookup(key)
	if !ok {
		logging.NewLogger("snac", "Registry.Dispatch").
			WithField("registry", r.name).
			WithField("key", key.String()).
			WithField("body_len", env.Body.Len()).
			Debug("No factory for command")
		return &Unrecognized{Envelope: *env.Owned()}, nil
	}
	cmd, err := f.New(env)
	if err != nil {
		logging.NewLogger("snac", "Registry.Dispatch").
			WithCaller().
			WithField("registry", r.name).
			WithField("key", key.String()).
			WithFields(logging.HexPreview(env.Body.Bytes(), "body")).
			WithError(err, "decode").
			Warn("Failed to decode command")
		return nil, &DecodeError{Key: key, Err: err}
	}
	return cmd, nil
}

// DispatchBytes parses raw as one envelope and dispatches it. raw must be
// a non-empty command within limits.MaxSnacSize.
func (r *Registry) DispatchBytes(raw []byte) (Command, error) {
	if err := limits.ValidateSnac(raw); err != nil {
		return nil, err
	}
	env, err := ParseEnvelope(raw)
	if err != nil {
		return nil, err
	}
	return r.Dispatch(env)
}
