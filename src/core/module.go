package core

import (
	"context"
	"fmt"
	"log"
)

// Module is one independently startable bot component.
type Module interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context)
}

// Manager starts and stops modules as a group. Start is all-or-nothing:
// if any module fails to start, the ones already running are stopped in
// reverse order before the error is returned.
type Manager struct {
	modules []Module
}

func NewManager(modules ...Module) *Manager {
	return &Manager{modules: modules}
}

func (m *Manager) Start(ctx context.Context) error {
	for i, mod := range m.modules {
		log.Printf("core: starting %s", mod.Name())
		if err := mod.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				m.modules[j].Stop(ctx)
			}
			return fmt.Errorf("start %s: %w", mod.Name(), err)
		}
	}
	return nil
}

func (m *Manager) Stop(ctx context.Context) {
	for i := len(m.modules) - 1; i >= 0; i-- {
		log.Printf("core: stopping %s", m.modules[i].Name())
		m.modules[i].Stop(ctx)
	}
}
