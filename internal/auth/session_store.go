package auth

import (
	"strings"
	"sync"
	"time"
)

// SessionStore хранит ключи успешных логонов для reconnect-доказательства.
// Thread-safe через sync.Map.
type SessionStore struct {
	sessions sync.Map // map[string]*StoredSession
	now      func() time.Time
}

// StoredSession is one remembered session key.
type StoredSession struct {
	Username  string
	Key       SessionKey
	CreatedAt time.Time
}

// NewSessionStore создаёт пустое хранилище.
func NewSessionStore() *SessionStore {
	return &SessionStore{now: time.Now}
}

// аккаунты в legacy протоколе регистронезависимы
func accountID(username string) string {
	return strings.ToUpper(username)
}

// Store сохраняет ключ для аккаунта, заменяя предыдущий.
func (s *SessionStore) Store(username string, key SessionKey) {
	s.sessions.Store(accountID(username), &StoredSession{
		Username:  username,
		Key:       key,
		CreatedAt: s.now(),
	})
}

// Load возвращает сохранённый ключ, если он не старше ttl.
// ttl <= 0 disables the age check.
func (s *SessionStore) Load(username string, ttl time.Duration) (SessionKey, bool) {
	val, ok := s.sessions.Load(accountID(username))
	if !ok {
		return SessionKey{}, false
	}
	info := val.(*StoredSession)
	if ttl > 0 && s.now().Sub(info.CreatedAt) > ttl {
		return SessionKey{}, false
	}
	return info.Key, true
}

// Remove удаляет ключ аккаунта.
func (s *SessionStore) Remove(username string) {
	s.sessions.Delete(accountID(username))
}

// CleanExpired removes sessions older than ttl. Like Load, ttl <= 0
// disables expiry.
func (s *SessionStore) CleanExpired(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	now := s.now()
	s.sessions.Range(func(key, value any) bool {
		info := value.(*StoredSession)
		if now.Sub(info.CreatedAt) > ttl {
			s.sessions.Delete(key)
		}
		return true
	})
}

// Count возвращает количество сохранённых сессий.
func (s *SessionStore) Count() int {
	count := 0
	s.sessions.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}
