// Package options implements the functional options shared by the writer,
// reader, accessor, cache and codec registry constructors.
package options

// Option configures a value of type T, typically a pointer to a private
// config struct.
type Option[T any] interface {
	apply(T) error
}

// Func is an Option backed by a function.
type Func[T any] struct {
	applyFunc func(T) error
}

func (f *Func[T]) apply(target T) error {
	return f.applyFunc(target)
}

// New creates an option whose function may reject its argument, e.g. an
// out-of-range concurrency or an unknown frame of reference.
func New[T any](fn func(T) error) *Func[T] {
	return &Func[T]{applyFunc: fn}
}

// NoError creates an option that cannot fail.
func NoError[T any](fn func(T)) *Func[T] {
	return &Func[T]{
		applyFunc: func(target T) error {
			fn(target)
			return nil
		},
	}
}

// Apply applies opts to target in order and stops at the first error. Nil
// options are skipped, so callers can pass conditionally built lists.
func Apply[T any](target T, opts ...Option[T]) error {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(target); err != nil {
			return err
		}
	}

	return nil
}
