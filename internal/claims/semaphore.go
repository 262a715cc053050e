package claims

// Semaphore bounds the number of in-flight dispatches per worker.
type Semaphore struct {
	slots chan struct{}
}

// NewSemaphore creates a semaphore with n slots.
func NewSemaphore(n int) *Semaphore {
	return &Semaphore{slots: make(chan struct{}, n)}
}

// Acquire blocks until a slot is free.
func (s *Semaphore) Acquire() {
	s.slots <- struct{}{}
}

// Release frees a slot.
func (s *Semaphore) Release() {
	<-s.slots
}

// InUse returns the number of held slots.
func (s *Semaphore) InUse() int {
	return len(s.slots)
}
