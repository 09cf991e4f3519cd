package api

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/beevm/bee/service"
	"github.com/beevm/bee/vm"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
)

// Session is one active Bee debugging session.
type Session struct {
	ID        string
	Service   *service.DebuggerService
	CreatedAt time.Time
	TempDir   string // session-scoped fsroot, removed on destroy
}

// SessionManager owns every live Session.
type SessionManager struct {
	sessions    map[string]*Session
	broadcaster *Broadcaster
	mu          sync.RWMutex
}

// NewSessionManager creates a session manager broadcasting through b.
func NewSessionManager(b *Broadcaster) *SessionManager {
	return &SessionManager{sessions: make(map[string]*Session), broadcaster: b}
}

// CreateSession creates a session with a fresh ID.
func (sm *SessionManager) CreateSession(opts SessionCreateRequest) (*Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, err
	}

	width := vm.Width64
	if opts.Width32 {
		width = vm.Width32
	}

	var tempDir, fsroot string
	if opts.FSRoot != "" {
		fsroot = opts.FSRoot
	} else {
		tempDir, err = os.MkdirTemp("", "bee-session-*")
		if err != nil {
			return nil, err
		}
		fsroot = tempDir
	}

	debugService := service.NewDebuggerService(width, opts.BigEndian, fsroot)
	if sm.broadcaster != nil {
		debugService.SetStdout(NewEventWriter(sm.broadcaster, sessionID, "stdout"))
	}

	session := &Session{ID: sessionID, Service: debugService, CreatedAt: time.Now(), TempDir: tempDir}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	if _, exists := sm.sessions[sessionID]; exists {
		return nil, ErrSessionAlreadyExists
	}
	sm.sessions[sessionID] = session
	debugLog("created session %s (width=%v fsroot=%s)", sessionID, width, fsroot)
	return session, nil
}

// GetSession retrieves a session by ID.
func (sm *SessionManager) GetSession(sessionID string) (*Session, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	session, exists := sm.sessions[sessionID]
	if !exists {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// DestroySession removes a session and cleans up its temp fsroot.
func (sm *SessionManager) DestroySession(sessionID string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, exists := sm.sessions[sessionID]
	if !exists {
		return ErrSessionNotFound
	}
	if session.TempDir != "" {
		_ = os.RemoveAll(session.TempDir)
	}
	delete(sm.sessions, sessionID)
	debugLog("destroyed session %s", sessionID)
	return nil
}

// ListSessions returns every active session ID.
func (sm *SessionManager) ListSessions() []string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	ids := make([]string, 0, len(sm.sessions))
	for id := range sm.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of active sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

func generateSessionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
