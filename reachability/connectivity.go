package reachability

import "sync"

// ConnectivitySource delivers "connectivity restored" signals from the host
// environment (network change hooks, OS notifications, signals).
type ConnectivitySource interface {
	// Subscribe registers fn and returns a function that removes it.
	// fn may be called from any goroutine and must not block.
	Subscribe(fn func()) (unsubscribe func())
}

// Notifier is an in-process ConnectivitySource. Hosts call Notify when
// they learn that the network came back.
type Notifier struct {
	mu   sync.Mutex
	next int
	subs map[int]func()
}

// NewNotifier creates an empty Notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]func())}
}

// Subscribe implements ConnectivitySource.
func (n *Notifier) Subscribe(fn func()) func() {
	n.mu.Lock()
	id := n.next
	n.next++
	n.subs[id] = fn
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
}

// Notify calls every current subscriber.
func (n *Notifier) Notify() {
	n.mu.Lock()
	subs := make([]func(), 0, len(n.subs))
	for _, fn := range n.subs {
		subs = append(subs, fn)
	}
	n.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

// Subscribers returns the number of current subscribers.
func (n *Notifier) Subscribers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}
