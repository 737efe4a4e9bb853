package events

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/interfaces"
	"github.com/ternarybob/yojana/internal/models"
)

// Service implements EventService with named subscribers
type Service struct {
	subscribers map[string]interfaces.IngestionEventHandler
	mu          sync.RWMutex
	wg          sync.WaitGroup
	logger      arbor.ILogger
}

// NewService creates a new event service
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		subscribers: make(map[string]interfaces.IngestionEventHandler),
		logger:      logger,
	}
}

// Subscribe registers a handler under name, replacing any previous one
func (s *Service) Subscribe(name string, handler interfaces.IngestionEventHandler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscribers[name] = handler

	s.logger.Debug().
		Str("subscriber", name).
		Int("subscriber_count", len(s.subscribers)).
		Msg("Event handler subscribed")

	return nil
}

// Unsubscribe removes the handler registered under name
func (s *Service) Unsubscribe(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subscribers[name]; !ok {
		return fmt.Errorf("no subscriber named %s", name)
	}
	delete(s.subscribers, name)
	return nil
}

// Publish hands the event to every subscriber on its own goroutine
func (s *Service) Publish(event models.IngestionEvent) {
	s.mu.RLock()
	names := make([]string, 0, len(s.subscribers))
	for name := range s.subscribers {
		names = append(names, name)
	}
	sort.Strings(names)
	handlers := make([]interfaces.IngestionEventHandler, len(names))
	for i, name := range names {
		handlers[i] = s.subscribers[name]
	}
	s.mu.RUnlock()

	for i, handler := range handlers {
		s.wg.Add(1)
		go func(name string, h interfaces.IngestionEventHandler) {
			defer s.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error().
						Str("subscriber", name).
						Str("panic", fmt.Sprintf("%v", r)).
						Msg("PANIC in event handler - recovered")
				}
			}()
			if err := h(event); err != nil {
				s.logger.Warn().
					Err(err).
					Str("subscriber", name).
					Str("stage", event.Stage).
					Msg("Event handler failed")
			}
		}(names[i], handler)
	}
}

// Wait blocks until every in-flight handler has returned
func (s *Service) Wait() {
	s.wg.Wait()
}

// Close drops all subscribers after in-flight handlers finish
func (s *Service) Close() error {
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscribers = make(map[string]interfaces.IngestionEventHandler)
	s.logger.Info().Msg("Event service closed")

	return nil
}
