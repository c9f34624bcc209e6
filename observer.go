// Package pluginengine provides Observer pattern interfaces for event-driven
// notification. Events use the CloudEvents specification for standardized
// format and better interoperability with external systems.
package pluginengine

import (
	"context"
	"fmt"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// Observer defines the interface for objects that want to be notified of
// engine events. Observers register with the engine and are notified after
// a load pass completes and as individual plugins load or fail.
type Observer interface {
	// OnEvent is called when an event the observer subscribed to occurs.
	// Observers should return quickly; slow work belongs in their own
	// goroutines.
	OnEvent(ctx context.Context, event cloudevents.Event) error

	// ObserverID returns a unique identifier for this observer, used for
	// registration tracking and de-duplication.
	ObserverID() string
}

// ObserverInfo describes a registered observer, for debugging and
// monitoring.
type ObserverInfo struct {
	// ID is the unique identifier of the observer.
	ID string `json:"id"`

	// EventTypes are the event types the observer subscribed to. Empty
	// means all events.
	EventTypes []string `json:"eventTypes"`

	// RegisteredAt indicates when the observer was registered.
	RegisteredAt time.Time `json:"registeredAt"`
}

// Event type constants emitted by the engine. Following the CloudEvents
// specification, these use reverse domain notation.
const (
	// EventTypePluginsLoaded is announced exactly once after a load pass
	// completes, regardless of per-plugin failures. It carries no payload
	// that listeners are expected to consume.
	EventTypePluginsLoaded = "com.pluginengine.plugins.loaded"

	// EventTypePluginLoaded is emitted for each plugin instance that
	// initialized successfully.
	EventTypePluginLoaded = "com.pluginengine.plugin.loaded"

	// EventTypePluginFailed is emitted for each requested name that could
	// not be loaded.
	EventTypePluginFailed = "com.pluginengine.plugin.failed"
)

// CloudEvent is an alias for the CloudEvents Event type for convenience.
type CloudEvent = cloudevents.Event

// NewCloudEvent creates a properly formatted CloudEvent for engine
// notifications.
func NewCloudEvent(eventType, source string, data interface{}, metadata map[string]interface{}) cloudevents.Event {
	event := cloudevents.NewEvent()
	event.SetID(generateEventID())
	event.SetSource(source)
	event.SetType(eventType)
	event.SetTime(time.Now())
	event.SetSpecVersion(cloudevents.VersionV1)

	if data != nil {
		_ = event.SetData(cloudevents.ApplicationJSON, data)
	}
	for key, value := range metadata {
		event.SetExtension(key, value)
	}
	return event
}

// generateEventID generates a unique identifier for CloudEvents using
// UUIDv7, which provides time-ordered uniqueness.
func generateEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

// FunctionalObserver wraps a plain function as an Observer with a generated
// identity. Useful for hosts that just want a callback on load completion.
type FunctionalObserver struct {
	id string
	fn func(ctx context.Context, event cloudevents.Event) error
}

// NewFunctionalObserver creates an observer around fn with a unique ID.
func NewFunctionalObserver(fn func(ctx context.Context, event cloudevents.Event) error) *FunctionalObserver {
	return &FunctionalObserver{
		id: "func-observer-" + uuid.NewString(),
		fn: fn,
	}
}

// OnEvent implements Observer.
func (o *FunctionalObserver) OnEvent(ctx context.Context, event cloudevents.Event) error {
	return o.fn(ctx, event)
}

// ObserverID implements Observer.
func (o *FunctionalObserver) ObserverID() string { return o.id }

// observerRegistration holds information about a registered observer.
type observerRegistration struct {
	observer     Observer
	eventTypes   map[string]bool
	registeredAt time.Time
}

// observerRegistry implements the subject side of the Observer pattern for
// the engine. Notification is non-blocking for the caller; observer errors
// and panics are logged, never propagated.
type observerRegistry struct {
	mu        sync.RWMutex
	observers map[string]*observerRegistration
	logger    Logger
}

func newObserverRegistry(logger Logger) *observerRegistry {
	return &observerRegistry{
		observers: make(map[string]*observerRegistration),
		logger:    logger,
	}
}

func (r *observerRegistry) register(observer Observer, eventTypes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	eventTypeMap := make(map[string]bool, len(eventTypes))
	for _, eventType := range eventTypes {
		eventTypeMap[eventType] = true
	}
	r.observers[observer.ObserverID()] = &observerRegistration{
		observer:     observer,
		eventTypes:   eventTypeMap,
		registeredAt: time.Now(),
	}
	r.logger.Debug("Observer registered", "observerID", observer.ObserverID(), "eventTypes", eventTypes)
}

func (r *observerRegistry) unregister(observer Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.observers, observer.ObserverID())
}

func (r *observerRegistry) notify(ctx context.Context, event cloudevents.Event) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if event.Time().IsZero() {
		event.SetTime(time.Now())
	}
	if err := event.Validate(); err != nil {
		r.logger.Error("Invalid CloudEvent", "eventType", event.Type(), "error", err)
		return fmt.Errorf("cloudevent validation failed: %w", err)
	}

	for _, registration := range r.observers {
		if len(registration.eventTypes) > 0 && !registration.eventTypes[event.Type()] {
			continue
		}

		registration := registration
		go func() {
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Error("Observer panicked",
						"observerID", registration.observer.ObserverID(),
						"event", event.Type(), "panic", rec)
				}
			}()
			if err := registration.observer.OnEvent(ctx, event); err != nil {
				r.logger.Error("Observer error",
					"observerID", registration.observer.ObserverID(),
					"event", event.Type(), "error", err)
			}
		}()
	}
	return nil
}

func (r *observerRegistry) info() []ObserverInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ObserverInfo, 0, len(r.observers))
	for _, registration := range r.observers {
		eventTypes := make([]string, 0, len(registration.eventTypes))
		for eventType := range registration.eventTypes {
			eventTypes = append(eventTypes, eventType)
		}
		infos = append(infos, ObserverInfo{
			ID:           registration.observer.ObserverID(),
			EventTypes:   eventTypes,
			RegisteredAt: registration.registeredAt,
		})
	}
	return infos
}
