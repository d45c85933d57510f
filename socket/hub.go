package socket

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/kbcarlson3/meal-match/logger"
	"github.com/kbcarlson3/meal-match/models"
)

// State is the lifecycle of one subscription
type State int32

// Subscription states. Closed and Errored are terminal.
const (
	StateConnecting State = iota
	StateSubscribed
	StateClosed
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	}
	return "unknown"
}

// Subscription receives match events for one group until it ends.
// C is closed when the subscription reaches a terminal state.
type Subscription struct {
	GroupID string
	C       <-chan models.MatchEvent

	ch    chan models.MatchEvent
	hub   *Hub
	state atomic.Int32
	once  sync.Once
	err   atomic.Pointer[error]
	done  chan struct{}
}

// State reports the current lifecycle state
func (s *Subscription) State() State { return State(s.state.Load()) }

// Err is the reason an Errored subscription ended; nil otherwise
func (s *Subscription) Err() error {
	if p := s.err.Load(); p != nil {
		return *p
	}
	return nil
}

// Done is closed once the subscription is terminal
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Close ends the subscription. It never touches ledger or match state.
func (s *Subscription) Close() {
	s.hub.remove(s)
	s.finish(StateClosed, nil)
}

func (s *Subscription) finish(st State, err error) {
	s.once.Do(func() {
		if err != nil {
			s.err.Store(&err)
		}
		s.state.Store(int32(st))
		close(s.ch)
		close(s.done)
	})
}

// Hub fans newly created matches out to the group's live subscribers.
// Delivery is at-most-once: nothing is stored for absent subscribers and a
// subscriber whose buffer is full is dropped rather than blocking Publish.
type Hub struct {
	mu     sync.Mutex
	groups map[string]map[*Subscription]struct{}
	buffer int
	closed bool
	log    *logger.Logger
}

// NewHub returns a hub whose subscribers buffer up to buffer events
func NewHub(buffer int, log *logger.Logger) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{groups: map[string]map[*Subscription]struct{}{}, buffer: buffer, log: log}
}

// Subscribe registers a subscriber for groupID. The subscription closes when
// ctx ends. On a shut down hub it comes back Errored with ErrChannelClosed.
func (h *Hub) Subscribe(ctx context.Context, groupID string) *Subscription {
	ch := make(chan models.MatchEvent, h.buffer)
	sub := &Subscription{GroupID: groupID, C: ch, ch: ch, hub: h, done: make(chan struct{})}
	sub.state.Store(int32(StateConnecting))

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		sub.finish(StateErrored, models.ErrChannelClosed)
		return sub
	}
	set, ok := h.groups[groupID]
	if !ok {
		set = map[*Subscription]struct{}{}
		h.groups[groupID] = set
	}
	set[sub] = struct{}{}
	sub.state.Store(int32(StateSubscribed))
	h.mu.Unlock()

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				sub.Close()
			case <-sub.done:
			}
		}()
	}
	return sub
}

// Publish delivers evt to every current subscriber of groupID and returns
// how many received it
func (h *Hub) Publish(groupID string, evt models.MatchEvent) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for sub := range h.groups[groupID] {
		select {
		case sub.ch <- evt:
			delivered++
		default:
			h.log.Warn().Str("group_id", groupID).Str("match_id", evt.MatchID).Msg("dropping slow subscriber")
			h.removeLocked(sub)
			sub.finish(StateErrored, models.ErrSlowSubscriber)
		}
	}
	return delivered
}

// Subscribers reports the live subscriber count for groupID
func (h *Hub) Subscribers(groupID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.groups[groupID])
}

// Shutdown closes every subscription; later Subscribe calls fail
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	groups := h.groups
	h.groups = map[string]map[*Subscription]struct{}{}
	h.mu.Unlock()

	for _, set := range groups {
		for sub := range set {
			sub.finish(StateClosed, nil)
		}
	}
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

func (h *Hub) removeLocked(sub *Subscription) {
	set, ok := h.groups[sub.GroupID]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.groups, sub.GroupID)
	}
}
