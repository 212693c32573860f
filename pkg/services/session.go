package services

import (
	"strings"
	"sync"

	"github.com/nl2db/nl2db/pkg/models"
)

// DefaultHistorySize is the number of entries a Session keeps when no size is given.
const DefaultHistorySize = 100

// Session owns the question history and SQL cache of one user
// conversation. It is safe for concurrent use; the presentation layer holds
// a pointer to the same Session the AgentService writes to.
type Session struct {
	mu         sync.Mutex
	maxHistory int
	history    []models.HistoryEntry

	cacheSize  int
	cache      map[string]string
	cacheOrder []string // insertion order, oldest first
}

// NewSession creates a Session keeping at most maxHistory entries and
// cacheSize cached statements. A cacheSize of 0 disables the SQL cache.
func NewSession(maxHistory, cacheSize int) *Session {
	if maxHistory <= 0 {
		maxHistory = DefaultHistorySize
	}
	if cacheSize < 0 {
		cacheSize = 0
	}
	return &Session{
		maxHistory: maxHistory,
		cacheSize:  cacheSize,
		cache:      make(map[string]string),
	}
}

// Append records an entry, evicting the oldest once the maximum is exceeded.
func (s *Session) Append(entry models.HistoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, entry)
	if over := len(s.history) - s.maxHistory; over > 0 {
		// Copy so the evicted prefix is released.
		s.history = append([]models.HistoryEntry(nil), s.history[over:]...)
	}
}

// History returns up to limit of the most recent entries, oldest first.
// A non-positive limit returns every retained entry.
func (s *Session) History(limit int) []models.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := 0
	if limit > 0 && limit < len(s.history) {
		start = len(s.history) - limit
	}
	return append([]models.HistoryEntry(nil), s.history[start:]...)
}

// Last returns the most recent entry.
func (s *Session) Last() (models.HistoryEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.history) == 0 {
		return models.HistoryEntry{}, false
	}
	return s.history[len(s.history)-1], true
}

// LastSQL returns the SQL of the most recent entry that produced one.
func (s *Session) LastSQL() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].SQL != "" {
			return s.history[i].SQL, true
		}
	}
	return "", false
}

// Len returns the number of retained entries.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// CachedSQL returns previously accepted SQL for question.
func (s *Session) CachedSQL(question string) (string, bool) {
	if s.cacheSize == 0 {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlText, ok := s.cache[cacheKey(question)]
	return sqlText, ok
}

// CacheSQL remembers accepted SQL for question, evicting the oldest cached
// statement when full.
func (s *Session) CacheSQL(question, sqlText string) {
	if s.cacheSize == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := cacheKey(question)
	if _, exists := s.cache[key]; !exists {
		if len(s.cacheOrder) >= s.cacheSize {
			oldest := s.cacheOrder[0]
			s.cacheOrder = s.cacheOrder[1:]
			delete(s.cache, oldest)
		}
		s.cacheOrder = append(s.cacheOrder, key)
	}
	s.cache[key] = sqlText
}

// cacheKey folds case, whitespace and trailing punctuation so trivially
// different phrasings of the same question share an entry.
func cacheKey(question string) string {
	key := strings.ToLower(strings.Join(strings.Fields(question), " "))
	return strings.TrimRight(key, "?!. ")
}
