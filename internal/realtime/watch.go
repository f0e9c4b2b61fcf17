package realtime

import (
	"context"
	"sync"
)

// Subscription is the handle returned by Watch. Close stops delivery and
// waits for the delivery goroutine to exit.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Close tears the subscription down. It must not be called from inside the
// onChange callback of the same subscription.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
	return nil
}

// Done is closed once the subscription has stopped delivering.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Watch loads an initial snapshot, hands it to onChange and reloads it every
// time one of collections changes. Cancelling ctx has the same effect as Close.
func Watch[T any](
	ctx context.Context,
	hub *Hub,
	collections []string,
	load func(context.Context) (T, error),
	onChange func(T, error),
) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	id, notify := hub.listen(collections)
	sub := &Subscription{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		defer hub.unlisten(id)

		deliver := func() {
			snapshot, err := load(ctx)
			if ctx.Err() != nil {
				return
			}
			onChange(snapshot, err)
		}

		deliver()
		for {
			select {
			case <-ctx.Done():
				return
			case <-notify:
				deliver()
			}
		}
	}()

	return sub
}

// Join returns one handle for several subscriptions. Closing it closes all of
// them; Done is closed once every one has stopped.
func Join(subs ...*Subscription) *Subscription {
	joined := &Subscription{
		cancel: func() {
			for _, s := range subs {
				s.cancel()
			}
		},
		done: make(chan struct{}),
	}
	go func() {
		defer close(joined.done)
		for _, s := range subs {
			<-s.done
		}
	}()
	return joined
}
