package ir

// IDPool allocates sequential SPIR-V result ids. Id 0 is reserved (SPIR-V
// has no id 0), so the pool always starts handing out ids at 1 and the
// final count left in the pool after emission becomes the module's
// id bound.
type IDPool struct {
	next uint32
}

// NewIDPool creates a pool with the next allocation at 1.
func NewIDPool() *IDPool {
	return &IDPool{next: 1}
}

// Alloc returns a fresh id and advances the pool.
func (p *IDPool) Alloc() uint32 {
	id := p.next
	p.next++
	return id
}

// Bound returns the value SPIR-V's header "bound" field should carry: one
// past the highest id ever allocated.
func (p *IDPool) Bound() uint32 {
	return p.next
}
