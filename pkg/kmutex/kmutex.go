// Package kmutex: mutex por clave para serializar trabajo por tenant.
// Las entradas se liberan cuando nadie las referencia.
package kmutex

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// KeyedMutex serializa secciones críticas por clave (ej: tenantID).
// El cero es utilizable.
//
// Invariante: mientras un goroutine tiene la clave bloqueada (o espera por
// ella) su referencia mantiene viva la entrada, así que Unlock siempre opera
// sobre el mismo mutex que bloqueó Lock. La tabla solo se toca bajo mu.
type KeyedMutex[K comparable] struct {
	mu    sync.Mutex
	table map[K]*entry
}

// Lock bloquea la clave.
func (m *KeyedMutex[K]) Lock(key K) {
	m.mu.Lock()
	if m.table == nil {
		m.table = make(map[K]*entry)
	}
	e, ok := m.table[key]
	if !ok {
		e = &entry{}
		m.table[key] = e
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()
}

// Unlock desbloquea la clave. Debe emparejarse con un Lock previo.
func (m *KeyedMutex[K]) Unlock(key K) {
	m.mu.Lock()
	e, ok := m.table[key]
	if !ok {
		m.mu.Unlock()
		panic("kmutex: Unlock sin Lock previo")
	}
	e.refs--
	if e.refs == 0 {
		delete(m.table, key)
	}
	m.mu.Unlock()

	e.mu.Unlock()
}

// held devuelve cuántas claves tienen entrada viva (para tests).
func (m *KeyedMutex[K]) held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.table)
}
