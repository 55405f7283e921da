// Package keylock aynı kayıt (müşteri, sipariş) üzerindeki istekleri süreç içinde sıraya sokar.
// Çoklu instance için asıl garanti veritabanı satır kilididir (SELECT ... FOR UPDATE).
package keylock

import "sync"

type Map struct {
	mu    sync.Mutex
	locks map[uint]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func New() *Map {
	return &Map{locks: make(map[uint]*entry)}
}

// Lock key için kilidi alır, dönen fonksiyon kilidi bırakır.
// Kimse beklemiyorsa girdi haritadan silinir.
func (m *Map) Lock(key uint) (unlock func()) {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		e = &entry{}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		m.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(m.locks, key)
		}
		m.mu.Unlock()
	}
}

func (m *Map) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
