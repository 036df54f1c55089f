package adapters

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/otcheredev/ris-study-browser/internal/models"
)

// AdapterFactory manages archive adapter instances, one per archive server
type AdapterFactory struct {
	mu       sync.RWMutex
	adapters map[uuid.UUID]ArchiveAdapter
	timeout  time.Duration
}

// NewAdapterFactory creates a new adapter factory. The timeout applies to
// every outbound archive call an adapter makes.
func NewAdapterFactory(timeout time.Duration) *AdapterFactory {
	return &AdapterFactory{
		adapters: make(map[uuid.UUID]ArchiveAdapter),
		timeout:  timeout,
	}
}

// GetAdapter gets or creates an adapter for an archive server
func (f *AdapterFactory) GetAdapter(server models.ArchiveServer) (ArchiveAdapter, error) {
	f.mu.RLock()
	adapter, exists := f.adapters[server.ID]
	f.mu.RUnlock()

	if exists {
		return adapter, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// Double-check after acquiring write lock
	if adapter, exists := f.adapters[server.ID]; exists {
		return adapter, nil
	}

	adapter, err := NewAdapter(server, f.timeout)
	if err != nil {
		return nil, err
	}

	f.adapters[server.ID] = adapter
	return adapter, nil
}

// NewAdapter creates an unmanaged adapter for an archive server. Used for
// ad-hoc connection tests where the descriptor is not yet persisted.
func NewAdapter(server models.ArchiveServer, timeout time.Duration) (ArchiveAdapter, error) {
	switch server.Type {
	case models.ArchiveTypeDICOMWeb:
		return NewDICOMWebAdapter(server, timeout)
	case models.ArchiveTypeOrthanc:
		return NewOrthancAdapter(server, timeout)
	default:
		return nil, fmt.Errorf("unsupported archive type: %s", server.Type)
	}
}

// RemoveAdapter removes the adapter for an archive server
func (f *AdapterFactory) RemoveAdapter(serverID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	adapter, exists := f.adapters[serverID]
	if !exists {
		return nil
	}

	if err := adapter.Close(); err != nil {
		return fmt.Errorf("failed to close adapter: %w", err)
	}

	delete(f.adapters, serverID)
	return nil
}

// CloseAll closes all adapters
func (f *AdapterFactory) CloseAll() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs int
	for serverID, adapter := range f.adapters {
		if err := adapter.Close(); err != nil {
			errs++
		}
		delete(f.adapters, serverID)
	}

	if errs > 0 {
		return fmt.Errorf("encountered %d errors while closing adapters", errs)
	}

	return nil
}
