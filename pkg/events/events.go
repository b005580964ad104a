package events

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuemby/drex/pkg/types"
	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventPlacementScheduled EventType = "placement.scheduled"
	EventPlacementFailed    EventType = "placement.failed"
	EventNodeImported       EventType = "node.imported"
	EventNodeRemoved        EventType = "node.removed"
)

// Event represents a placement or inventory event
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Message   string
	Metadata  map[string]string
}

// Subscriber is a channel that receives events
type Subscriber chan *Event

// Broker manages event subscriptions and distribution
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}
	doneCh      chan struct{}
	stopOnce    sync.Once
	started     atomic.Bool
	dropped     atomic.Uint64
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100), // Buffer up to 100 events
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop
func (b *Broker) Start() {
	if b.started.CompareAndSwap(false, true) {
		go b.run()
	}
}

// Stop stops the broker. Events already queued are delivered before Stop
// returns.
func (b *Broker) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
	if b.started.Load() {
		<-b.doneCh
	}
}

// Subscribe creates a new subscription and returns a channel
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50) // Buffer per subscriber
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	close(sub)
}

// Publish publishes an event to all subscribers
func (b *Broker) Publish(event *Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	defer close(b.doneCh)
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			b.flush()
			return
		}
	}
}

// flush broadcasts whatever is still queued
func (b *Broker) flush() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		default:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			b.dropped.Add(1)
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Dropped returns how many deliveries were skipped because a subscriber
// buffer was full
func (b *Broker) Dropped() uint64 {
	return b.dropped.Load()
}

// NewPlacementEvent builds a placement.scheduled event
func NewPlacementEvent(p *types.Placement) *Event {
	nodes := make([]string, len(p.Nodes))
	for i, id := range p.Nodes {
		nodes[i] = string(id)
	}
	return &Event{
		Type:    EventPlacementScheduled,
		Message: "placement scheduled",
		Metadata: map[string]string{
			"placement_id":  p.ID,
			"file_id":       p.FileID,
			"scheme":        p.Scheme.String(),
			"nodes":         strings.Join(nodes, ","),
			"fragment_size": strconv.FormatUint(p.FragmentSize, 10),
			"reliability":   strconv.FormatFloat(p.Reliability, 'f', -1, 64),
			"strategy":      p.Strategy,
		},
	}
}

// NewNodeEvent builds a node.imported or node.removed event
func NewNodeEvent(eventType EventType, node *types.Node) *Event {
	return &Event{
		Type:    eventType,
		Message: string(eventType) + " " + string(node.ID),
		Metadata: map[string]string{
			"node_id":       string(node.ID),
			"reliability":   strconv.FormatFloat(node.Reliability, 'f', -1, 64),
			"free_capacity": strconv.FormatUint(node.FreeCapacity, 10),
		},
	}
}

// NewFailureEvent builds a placement.failed event
func NewFailureEvent(fileID, strategy string, err error) *Event {
	return &Event{
		Type:    EventPlacementFailed,
		Message: err.Error(),
		Metadata: map[string]string{
			"file_id":  fileID,
			"strategy": strategy,
		},
	}
}
