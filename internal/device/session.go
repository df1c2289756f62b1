package device

import "sync"

// Session — монопольная сессия устройства.
//
// Камера одна на весь процесс, а пользуются ей runs по расписанию,
// ручные runs и проверка доступности. Каждый из них держит Lock на
// всю последовательность Connect → CaptureBlob → Disconnect;
// проверка доступности занятое устройство пропускает (TryLock).
type Session struct {
	mu sync.Mutex
}

// Lock открывает сессию, ожидая завершения текущей.
func (s *Session) Lock() { s.mu.Lock() }

// TryLock открывает сессию, только если устройство свободно.
func (s *Session) TryLock() bool { return s.mu.TryLock() }

// Unlock закрывает сессию.
func (s *Session) Unlock() { s.mu.Unlock() }
