package suppressor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CleanupManager releases registered resources once, within a timeout.
type CleanupManager struct {
	mu          sync.Mutex
	resources   []CleanupResource
	timeout     time.Duration
	log         zerolog.Logger
	cleanupOnce sync.Once
	errs        []error
}

// CleanupResource represents a resource that needs cleanup
type CleanupResource interface {
	Cleanup() error
	Name() string
}

// CleanupFunc is a function-based cleanup resource
type CleanupFunc struct {
	name string
	fn   func() error
}

func (c *CleanupFunc) Cleanup() error {
	return c.fn()
}

func (c *CleanupFunc) Name() string {
	return c.name
}

// NewCleanupManager creates a new cleanup manager with the specified timeout
func NewCleanupManager(timeout time.Duration, log zerolog.Logger) *CleanupManager {
	if timeout <= 0 {
		timeout = defaultStopTimeout
	}
	return &CleanupManager{
		timeout: timeout,
		log:     log.With().Str("component", "cleanup").Logger(),
	}
}

// Register adds a resource to be cleaned up
func (cm *CleanupManager) Register(resource CleanupResource) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.resources = append(cm.resources, resource)
}

// RegisterFunc registers a cleanup function
func (cm *CleanupManager) RegisterFunc(name string, fn func() error) {
	cm.Register(&CleanupFunc{name: name, fn: fn})
}

// Execute cleans up every registered resource in reverse registration
// order. Only the first call does any work; later calls return its errors.
func (cm *CleanupManager) Execute() []error {
	cm.cleanupOnce.Do(func() {
		cm.errs = cm.executeWithTimeout()
	})
	return cm.errs
}

func (cm *CleanupManager) executeWithTimeout() []error {
	cm.mu.Lock()
	resources := make([]CleanupResource, len(cm.resources))
	copy(resources, cm.resources)
	cm.mu.Unlock()

	if len(resources) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cm.timeout)
	defer cancel()

	done := make(chan struct{})
	var cleanupErrors []error
	var mu sync.Mutex
	record := func(err error) {
		mu.Lock()
		cleanupErrors = append(cleanupErrors, err)
		mu.Unlock()
	}

	go func() {
		defer close(done)
		for i := len(resources) - 1; i >= 0; i-- {
			resource := resources[i]
			func() {
				defer func() {
					if r := recover(); r != nil {
						record(fmt.Errorf("panic cleaning up %s: %v", resource.Name(), r))
						cm.log.Error().Str("resource", resource.Name()).Interface("panic", r).Msg("panic during cleanup")
					}
				}()

				if err := resource.Cleanup(); err != nil {
					record(fmt.Errorf("clean up %s: %w", resource.Name(), err))
					cm.log.Warn().Err(err).Str("resource", resource.Name()).Msg("cleanup failed")
				} else {
					cm.log.Debug().Str("resource", resource.Name()).Msg("cleaned up")
				}
			}()
		}
	}()

	select {
	case <-done:
		return cleanupErrors
	case <-ctx.Done():
		cm.log.Warn().Dur("timeout", cm.timeout).Msg("cleanup timeout, some resources may not have been cleaned up")
		mu.Lock()
		defer mu.Unlock()
		return append(append([]error(nil), cleanupErrors...), errors.New("cleanup timeout exceeded"))
	}
}

// Clear removes all registered resources without executing cleanup
func (cm *CleanupManager) Clear() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.resources = cm.resources[:0]
}
