package tracker

import "sync"

// observers is a subscription list. Callbacks run synchronously on the
// goroutine that calls notify, in subscription order.
type observers[T any] struct {
	mu     sync.Mutex
	nextID int
	subs   []subscription[T]
}

type subscription[T any] struct {
	id int
	fn func(T)
}

func (o *observers[T]) add(fn func(T)) (unsubscribe func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.nextID++
	id := o.nextID
	o.subs = append(o.subs, subscription[T]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			for i, s := range o.subs {
				if s.id == id {
					o.subs = append(o.subs[:i], o.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (o *observers[T]) notify(v T) {
	o.mu.Lock()
	subs := append([]subscription[T](nil), o.subs...)
	o.mu.Unlock()

	for _, s := range subs {
		s.fn(v)
	}
}
