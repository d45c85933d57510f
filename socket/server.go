// Package socket is the realtime side of the service: an in-process
// broadcast hub and the socket.io transport clients connect through.
package socket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kbcarlson3/meal-match/logger"
	"github.com/kbcarlson3/meal-match/models"

	socketio "github.com/googollee/go-socket.io"
)

// Client-facing event names
const (
	EventJoin              = "join"
	EventLeave             = "leave"
	EventSubscribed        = "subscribed"
	EventMatchCreated      = "matchCreated"
	EventSubscriptionError = "subscriptionError"
)

// DefaultJoinTimeout bounds the membership lookup behind a join
const DefaultJoinTimeout = 5 * time.Second

// GroupLookup resolves a group so joins can be checked against membership
type GroupLookup interface {
	GetGroup(ctx context.Context, groupID string) (models.Group, error)
}

type joinRequest struct {
	GroupID string `json:"groupId"`
	ActorID string `json:"actorId"`
}

type statusMessage struct {
	GroupID string `json:"groupId"`
	State   string `json:"state"`
	Error   string `json:"error,omitempty"`
}

// conn is the part of socketio.Conn the bridge uses
type conn interface {
	ID() string
	Emit(event string, v ...interface{})
	Context() interface{}
	SetContext(v interface{})
}

type connSubs struct {
	mu   sync.Mutex
	subs map[string]*Subscription
}

// Bridge maps socket.io connections onto hub subscriptions. Each joined group
// is one Subscription; leaving or disconnecting closes it.
type Bridge struct {
	hub    *Hub
	groups GroupLookup
	log    *logger.Logger

	JoinTimeout time.Duration
}

// NewBridge builds a bridge over hub
func NewBridge(hub *Hub, groups GroupLookup, log *logger.Logger) *Bridge {
	if log == nil {
		log = logger.Nop()
	}
	return &Bridge{hub: hub, groups: groups, log: log, JoinTimeout: DefaultJoinTimeout}
}

// NewServer returns a socket.io server wired to the bridge. Callers run
// Serve in a goroutine and mount it at /socket.io/.
func NewServer(b *Bridge) *socketio.Server {
	server := socketio.NewServer(nil)

	server.OnConnect("/", func(s socketio.Conn) error {
		return b.onConnect(s)
	})
	server.OnEvent("/", EventJoin, func(s socketio.Conn, req joinRequest) {
		b.onJoin(s, req)
	})
	server.OnEvent("/", EventLeave, func(s socketio.Conn, req joinRequest) {
		b.onLeave(s, req)
	})
	server.OnError("/", func(s socketio.Conn, err error) {
		id := ""
		if s != nil {
			id = s.ID()
		}
		b.log.Warn().Err(err).Str("conn_id", id).Msg("socket error")
	})
	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		b.onDisconnect(s, reason)
	})
	return server
}

func (b *Bridge) onConnect(c conn) error {
	c.SetContext(&connSubs{subs: map[string]*Subscription{}})
	b.log.Debug().Str("conn_id", c.ID()).Msg("socket connected")
	return nil
}

func subsOf(c conn) *connSubs {
	if cs, ok := c.Context().(*connSubs); ok {
		return cs
	}
	cs := &connSubs{subs: map[string]*Subscription{}}
	c.SetContext(cs)
	return cs
}

func (b *Bridge) onJoin(c conn, req joinRequest) {
	if req.GroupID == "" {
		c.Emit(EventSubscriptionError, statusMessage{State: StateErrored.String(), Error: "groupId is required"})
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.JoinTimeout)
	g, err := b.groups.GetGroup(ctx, req.GroupID)
	cancel()
	if err == nil && !g.HasMember(req.ActorID) {
		err = models.ErrNotGroupMember
	}
	if err != nil {
		b.log.Info().Err(err).Str("conn_id", c.ID()).Str("group_id", req.GroupID).Msg("join rejected")
		c.Emit(EventSubscriptionError, statusMessage{GroupID: req.GroupID, State: StateErrored.String(), Error: err.Error()})
		return
	}

	cs := subsOf(c)
	cs.mu.Lock()
	if old, ok := cs.subs[req.GroupID]; ok && old.State() == StateSubscribed {
		cs.mu.Unlock()
		c.Emit(EventSubscribed, statusMessage{GroupID: req.GroupID, State: old.State().String()})
		return
	}
	sub := b.hub.Subscribe(context.Background(), req.GroupID)
	cs.subs[req.GroupID] = sub
	cs.mu.Unlock()

	if sub.State() != StateSubscribed {
		c.Emit(EventSubscriptionError, statusMessage{GroupID: req.GroupID, State: sub.State().String(), Error: errString(sub.Err())})
		return
	}
	c.Emit(EventSubscribed, statusMessage{GroupID: req.GroupID, State: sub.State().String()})
	b.log.Debug().Str("conn_id", c.ID()).Str("group_id", req.GroupID).Msg("socket joined group")

	go b.forward(c, sub)
}

func (b *Bridge) forward(c conn, sub *Subscription) {
	for evt := range sub.C {
		c.Emit(EventMatchCreated, evt)
	}
	if sub.State() == StateErrored {
		c.Emit(EventSubscriptionError, statusMessage{GroupID: sub.GroupID, State: StateErrored.String(), Error: errString(sub.Err())})
	}
}

func (b *Bridge) onLeave(c conn, req joinRequest) {
	cs := subsOf(c)
	cs.mu.Lock()
	sub, ok := cs.subs[req.GroupID]
	delete(cs.subs, req.GroupID)
	cs.mu.Unlock()
	if ok {
		sub.Close()
	}
}

func (b *Bridge) onDisconnect(c conn, reason string) {
	cs := subsOf(c)
	cs.mu.Lock()
	subs := cs.subs
	cs.subs = map[string]*Subscription{}
	cs.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	b.log.Debug().Str("conn_id", c.ID()).Str("reason", reason).Int("closed", len(subs)).Msg("socket disconnected")
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, models.ErrSlowSubscriber) || errors.Is(err, models.ErrChannelClosed) {
		return err.Error() + "; resubscribe and refetch matches"
	}
	return err.Error()
}
