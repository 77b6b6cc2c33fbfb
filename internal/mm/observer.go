package mm

import "time"

// Observer receives one callback per mapping operation.
type Observer interface {
	// OnMmap is called after every Mmap with the requested length.
	OnMmap(duration time.Duration, length int64, err error)

	// OnMunmap is called after every Munmap with the number of blocks freed.
	OnMunmap(duration time.Duration, pages int, err error)

	// OnFault is called after every HandleFault. inherited is true when the
	// page was copied from the parent rather than read from the file.
	OnFault(duration time.Duration, at AccessType, inherited bool, err error)

	// OnWriteback is called for every page written back to its file.
	OnWriteback(bytes int, err error)
}

// NoopObserver is a no-op implementation of Observer.
type NoopObserver struct{}

func (NoopObserver) OnMmap(time.Duration, int64, error)             {}
func (NoopObserver) OnMunmap(time.Duration, int, error)             {}
func (NoopObserver) OnFault(time.Duration, AccessType, bool, error) {}
func (NoopObserver) OnWriteback(int, error)                         {}
