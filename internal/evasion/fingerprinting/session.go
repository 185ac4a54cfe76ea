package fingerprinting

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/xmok/rednote-signer/internal/crypto"
	"github.com/xmok/rednote-signer/internal/random"
	"github.com/xmok/rednote-signer/pkg/models"
	"github.com/xmok/rednote-signer/pkg/utils"
)

// Session is one signing identity: a single random stream shared by its
// payload builder and fingerprint generator, plus the cookies and fingerprint
// that travel with its requests.
type Session struct {
	ID           string
	UserAgent    string
	StartTime    time.Time
	LastActivity time.Time
	SignCount    int

	mu          sync.Mutex
	cookies     map[string]string
	fingerprint models.Fingerprint
	processor   *crypto.CryptoProcessor
	generator   *FingerprintGenerator
}

// Do runs fn with exclusive access to the session's random stream.
func (s *Session) Do(fn func(p *crypto.CryptoProcessor, g *FingerprintGenerator) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActivity = time.Now()
	s.SignCount++
	return fn(s.processor, s.generator)
}

// Fingerprint returns the session fingerprint after refreshing its
// per-request fields for url.
func (s *Session) Fingerprint(url string) models.Fingerprint {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generator.Update(s.fingerprint, s.cookies, url)
	return s.fingerprint.Clone()
}

func (s *Session) Config() models.CryptoConfig {
	return s.processor.Config()
}

func (s *Session) Cookies() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.cookies))
	for k, v := range s.cookies {
		out[k] = v
	}
	return out
}

func (s *Session) SetCookie(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cookies[name] = value
}

func (s *Session) lastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.LastActivity
}

type SessionManager struct {
	config  models.CryptoConfig
	opts    []GeneratorOption
	metrics *utils.MetricsCollector
	logger  *logrus.Logger

	mu             sync.RWMutex
	activeSessions map[string]*Session
}

func NewSessionManager(config models.CryptoConfig, metrics *utils.MetricsCollector, logger *logrus.Logger, opts ...GeneratorOption) *SessionManager {
	if logger == nil {
		logger = logrus.New()
	}
	return &SessionManager{
		config:         config,
		opts:           opts,
		metrics:        metrics,
		logger:         logger,
		activeSessions: make(map[string]*Session),
	}
}

// StartSession seeds a new stream and draws the session fingerprint from it.
func (sm *SessionManager) StartSession(cookies map[string]string, userAgent string) (*Session, error) {
	if userAgent == "" {
		userAgent = sm.config.PublicUserAgent
	}
	rng, err := random.NewGenerator(sm.config, sm.logger)
	if err != nil {
		return nil, err
	}
	processor, err := crypto.NewCryptoProcessorWithGenerator(sm.config, rng, sm.logger)
	if err != nil {
		return nil, err
	}
	generator, err := NewFingerprintGenerator(sm.config, rng, sm.logger, sm.opts...)
	if err != nil {
		return nil, err
	}

	jar := make(map[string]string, len(cookies))
	for k, v := range cookies {
		jar[k] = v
	}
	fp, err := generator.Generate(jar, userAgent)
	if err != nil {
		return nil, fmt.Errorf("generate fingerprint: %w", err)
	}

	now := time.Now()
	session := &Session{
		ID:           uuid.NewString(),
		UserAgent:    userAgent,
		StartTime:    now,
		LastActivity: now,
		cookies:      jar,
		fingerprint:  fp,
		processor:    processor,
		generator:    generator,
	}

	sm.mu.Lock()
	sm.activeSessions[session.ID] = session
	active := len(sm.activeSessions)
	sm.mu.Unlock()
	sm.metrics.SetActiveSessions(active)

	sm.logger.WithFields(logrus.Fields{
		"session_id":  session.ID,
		"fingerprint": fp.Digest(),
	}).Info("started signing session")
	return session, nil
}

func (sm *SessionManager) GetSession(sessionID string) (*Session, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.activeSessions[sessionID]
	if !exists {
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}
	return session, nil
}

func (sm *SessionManager) EndSession(sessionID string) error {
	sm.mu.Lock()
	if _, exists := sm.activeSessions[sessionID]; !exists {
		sm.mu.Unlock()
		return fmt.Errorf("session not found: %s", sessionID)
	}
	delete(sm.activeSessions, sessionID)
	active := len(sm.activeSessions)
	sm.mu.Unlock()
	sm.metrics.SetActiveSessions(active)

	sm.logger.Infof("Ended signing session %s", sessionID)
	return nil
}

func (sm *SessionManager) GetActiveSessions() []*Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	sessions := make([]*Session, 0, len(sm.activeSessions))
	for _, session := range sm.activeSessions {
		sessions = append(sessions, session)
	}
	return sessions
}

// CleanupSessions drops sessions idle for longer than maxAge and returns how many were removed.
func (sm *SessionManager) CleanupSessions(maxAge time.Duration) int {
	sm.mu.Lock()
	now := time.Now()
	removed := 0
	for id, session := range sm.activeSessions {
		if now.Sub(session.lastActivity()) > maxAge {
			delete(sm.activeSessions, id)
			removed++
			sm.logger.Infof("Cleaned up expired session %s", id)
		}
	}
	active := len(sm.activeSessions)
	sm.mu.Unlock()
	sm.metrics.SetActiveSessions(active)
	return removed
}

func (sm *SessionManager) GetStats() map[string]interface{} {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	signed := 0
	for _, s := range sm.activeSessions {
		s.mu.Lock()
		signed += s.SignCount
		s.mu.Unlock()
	}
	return map[string]interface{}{
		"active_sessions": len(sm.activeSessions),
		"signatures":      signed,
	}
}
