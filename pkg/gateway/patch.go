package gateway

// Patch is a pending optimistic mutation: the local next-state applied
// before the store confirms the write. It lives only until resolution:
// Commit on success (the next confirmed push supersedes it) or Rollback on
// failure, which restores the target bit-for-bit to its value at Apply time.
type Patch[T any] struct {
	target   *T
	previous T
	resolved bool
}

// Apply records *target as the previous value and installs next. The caller
// renders from *target, so the change is visible before the write round-trip
// completes.
func Apply[T any](target *T, next T) *Patch[T] {
	p := &Patch[T]{target: target, previous: *target}
	*target = next
	return p
}

// Rollback restores the value captured at Apply time. Resolving twice is a
// no-op.
func (p *Patch[T]) Rollback() {
	if p == nil || p.resolved {
		return
	}
	*p.target = p.previous
	p.resolved = true
}

// Commit drops the saved previous value, leaving the optimistic state in
// place until the next confirmed push overwrites it.
func (p *Patch[T]) Commit() {
	if p == nil {
		return
	}
	p.resolved = true
}

// Resolved reports whether the patch has been committed or rolled back.
func (p *Patch[T]) Resolved() bool { return p != nil && p.resolved }
