package jobqueue

import (
	"sync"

	"github.com/gofiber/fiber/v2/log"

	"github.com/faithcal/faithcal/internal/pkg/env"
)

// Manager owns the global media job queue
type Manager struct {
	queue   *Queue
	mu      sync.Mutex
	running bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		globalManager = &Manager{
			queue: NewQueue(env.GetEnvInt("JOBQUEUE_WORKERS", 3)),
		}
	})
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue workers
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue")
	m.queue.Start()
}

// Stop stops the job queue workers
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	m.running = false
	m.queue.Stop()
	log.Info("[JobQueue Manager] Stopped")
}
