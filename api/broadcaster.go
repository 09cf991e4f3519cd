package api

import (
	"sync"

	"github.com/beevm/bee/vm"
)

// EventType is the kind of event being broadcast to WebSocket clients.
type EventType string

const (
	EventTypeState     EventType = "state"   // register/PC/execution-state change
	EventTypeOutput    EventType = "output"   // debugger command output
	EventTypeExecution EventType = "event"    // breakpoint/watchpoint/halt
	EventTypeFault     EventType = "fault"    // a vm.Fault (§7 error taxonomy) was raised
)

// BroadcastEvent is one event sent to WebSocket clients.
type BroadcastEvent struct {
	Type      EventType              `json:"type"`
	SessionID string                 `json:"sessionId"`
	Data      map[string]interface{} `json:"data"`
}

// Subscription is a client's subscription to a filtered event stream.
type Subscription struct {
	SessionID  string
	EventTypes map[EventType]bool
	Channel    chan BroadcastEvent
}

// Broadcaster fans events out to every matching subscription.
type Broadcaster struct {
	mu            sync.RWMutex
	subscriptions map[*Subscription]bool
	broadcast     chan BroadcastEvent
	register      chan *Subscription
	unregister    chan *Subscription
	done          chan struct{}
}

// NewBroadcaster creates and starts a new event broadcaster.
func NewBroadcaster() *Broadcaster {
	b := &Broadcaster{
		subscriptions: make(map[*Subscription]bool),
		broadcast:     make(chan BroadcastEvent, 256),
		register:      make(chan *Subscription),
		unregister:    make(chan *Subscription),
		done:          make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Broadcaster) run() {
	for {
		select {
		case sub := <-b.register:
			b.mu.Lock()
			b.subscriptions[sub] = true
			b.mu.Unlock()

		case sub := <-b.unregister:
			b.mu.Lock()
			if b.subscriptions[sub] {
				delete(b.subscriptions, sub)
				close(sub.Channel)
			}
			b.mu.Unlock()

		case event := <-b.broadcast:
			b.mu.RLock()
			for sub := range b.subscriptions {
				if sub.SessionID != "" && sub.SessionID != event.SessionID {
					continue
				}
				if len(sub.EventTypes) > 0 && !sub.EventTypes[event.Type] {
					continue
				}
				select {
				case sub.Channel <- event:
				default:
					// Slow client; drop the event rather than block the fan-out.
				}
			}
			b.mu.RUnlock()

		case <-b.done:
			b.mu.Lock()
			for sub := range b.subscriptions {
				close(sub.Channel)
			}
			b.subscriptions = make(map[*Subscription]bool)
			b.mu.Unlock()
			return
		}
	}
}

// Subscribe creates a subscription; sessionID == "" matches every
// session, and an empty eventTypes matches every event type.
func (b *Broadcaster) Subscribe(sessionID string, eventTypes []EventType) *Subscription {
	eventTypeMap := make(map[EventType]bool)
	for _, et := range eventTypes {
		eventTypeMap[et] = true
	}

	sub := &Subscription{
		SessionID:  sessionID,
		EventTypes: eventTypeMap,
		Channel:    make(chan BroadcastEvent, 64),
	}

	b.register <- sub
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	b.unregister <- sub
}

// Broadcast sends an event to every matching subscription.
func (b *Broadcaster) Broadcast(event BroadcastEvent) {
	select {
	case b.broadcast <- event:
	default:
		// Broadcaster is overwhelmed; drop rather than block the caller.
	}
}

// BroadcastState sends a state-change event.
func (b *Broadcaster) BroadcastState(sessionID string, data map[string]interface{}) {
	b.Broadcast(BroadcastEvent{Type: EventTypeState, SessionID: sessionID, Data: data})
}

// BroadcastOutput sends a console/debugger output event.
func (b *Broadcaster) BroadcastOutput(sessionID, stream, content string) {
	b.Broadcast(BroadcastEvent{
		Type:      EventTypeOutput,
		SessionID: sessionID,
		Data:      map[string]interface{}{"stream": stream, "content": content},
	})
}

// BroadcastExecutionEvent sends a named execution event (breakpoint,
// watchpoint, halt) with arbitrary extra details.
func (b *Broadcaster) BroadcastExecutionEvent(sessionID, eventName string, details map[string]interface{}) {
	data := make(map[string]interface{})
	data["event"] = eventName
	for k, v := range details {
		data[k] = v
	}
	b.Broadcast(BroadcastEvent{Type: EventTypeExecution, SessionID: sessionID, Data: data})
}

// BroadcastBreakpointHit sends an execution event for a breakpoint
// that just stopped the VM, in either its address or opcode form.
func (b *Broadcaster) BroadcastBreakpointHit(sessionID string, address uint64, onOpcode bool, op string, hitCount int) {
	details := map[string]interface{}{"address": address, "onOpcode": onOpcode, "hitCount": hitCount}
	if onOpcode {
		details["op"] = op
	}
	b.BroadcastExecutionEvent(sessionID, "breakpoint", details)
}

// BroadcastFault sends a structured fault event carrying the VM's own
// error taxonomy (vm.Code, §7) instead of an ad hoc string, so a
// subscriber can branch on the same codes the interpreter itself uses
// rather than parsing free-form text out of a log line.
func (b *Broadcaster) BroadcastFault(sessionID string, fault *vm.Fault) {
	b.Broadcast(BroadcastEvent{
		Type:      EventTypeFault,
		SessionID: sessionID,
		Data: map[string]interface{}{
			"code": fault.Code.String(),
			"pc":   fault.PC,
		},
	})
}

// Close shuts down the broadcaster and closes all subscriptions.
func (b *Broadcaster) Close() {
	close(b.done)
}

// SubscriptionCount returns the number of active subscriptions.
func (b *Broadcaster) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscriptions)
}
