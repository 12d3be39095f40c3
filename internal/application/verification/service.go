package verification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/stocklaabh/verify-api/internal/domain"
	"github.com/stocklaabh/verify-api/internal/pkg/id"
	"github.com/stocklaabh/verify-api/internal/pkg/otp"
)

// CodeStore is keyed storage for outstanding verification codes.
// Put overwrites any prior code for the same (identifier, channel) — issuing
// a new code silently invalidates the previous one. Consume must serialize
// attempts per key so a single-use code can never be consumed twice.
type CodeStore interface {
	Put(ctx context.Context, code *domain.VerificationCode) error
	Get(ctx context.Context, identifier string, ch domain.Channel) (*domain.VerificationCode, error)
	Consume(ctx context.Context, identifier string, ch domain.Channel, submitted string) (domain.ConsumeResult, error)
}

// Mailer delivers verification codes over email. The subject and body
// template belong to the mailer.
type Mailer interface {
	SendOTP(to, code string, ttl time.Duration) error
}

// SMSSender delivers verification codes over SMS. Implementations never
// panic on provider failure; they log and return an error.
type SMSSender interface {
	SendSMS(ctx context.Context, to, code string) error
}

// MetricsCollector receives verification events. A nil collector disables
// recording.
type MetricsCollector interface {
	RecordCodeSent(channel string)
	RecordSendFailure(channel string)
	RecordVerification(channel, result string)
	RecordSessionCompleted()
}

// Service is the verification orchestrator: it owns sessions, issues and
// validates codes, and signals dual-channel completion exactly once.
type Service interface {
	StartSession(ctx context.Context) (*domain.VerificationSession, error)
	GetSession(ctx context.Context, sessionID string) (*domain.VerificationSession, error)
	SendCode(ctx context.Context, sessionID, identifier string, ch domain.Channel) error
	VerifyCode(ctx context.Context, sessionID, identifier string, ch domain.Channel, code string) (complete bool, err error)
	IsComplete(s *domain.VerificationSession) bool
	Close()
}

// Deps holds the orchestrator's collaborators.
type Deps struct {
	Store   CodeStore
	Mailer  Mailer
	SMS     SMSSender
	Metrics MetricsCollector
}

// Options holds verification policy knobs.
type Options struct {
	CodeTTL        time.Duration // lifetime of an issued code
	ResendCooldown time.Duration // 0 disables the cooldown
	SessionIdleTTL time.Duration // idle sessions past this are discarded

	// OnComplete fires exactly once per session, the moment the second
	// channel transitions to verified.
	OnComplete func(*domain.VerificationSession)
}

type sessionState struct {
	mu       sync.Mutex
	sess     domain.VerificationSession
	notified bool
	lastSeen time.Time
}

type service struct {
	store   CodeStore
	mailer  Mailer
	sms     SMSSender
	metrics MetricsCollector
	opts    Options

	mu       sync.Mutex
	sessions map[string]*sessionState

	done      chan struct{}
	closeOnce sync.Once
}

// NewService builds the orchestrator and starts the session sweeper.
func NewService(deps Deps, opts Options) Service {
	if opts.CodeTTL == 0 {
		opts.CodeTTL = 10 * time.Minute
	}
	if opts.SessionIdleTTL == 0 {
		opts.SessionIdleTTL = 30 * time.Minute
	}
	s := &service{
		store:    deps.Store,
		mailer:   deps.Mailer,
		sms:      deps.SMS,
		metrics:  deps.Metrics,
		opts:     opts,
		sessions: make(map[string]*sessionState),
		done:     make(chan struct{}),
	}
	go s.sweepSessions()
	return s
}

// Close stops the session sweeper. Safe to call more than once.
func (s *service) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *service) StartSession(_ context.Context) (*domain.VerificationSession, error) {
	st := &sessionState{
		sess: domain.VerificationSession{
			SessionID:  id.New(),
			EmailState: domain.StateNotSent,
			SMSState:   domain.StateNotSent,
			CreatedAt:  time.Now().UTC(),
		},
		lastSeen: time.Now(),
	}
	s.mu.Lock()
	s.sessions[st.sess.SessionID] = st
	s.mu.Unlock()

	snap := st.sess
	return &snap, nil
}

func (s *service) GetSession(_ context.Context, sessionID string) (*domain.VerificationSession, error) {
	st, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	snap := st.sess
	st.mu.Unlock()
	return &snap, nil
}

func (s *service) SendCode(ctx context.Context, sessionID, identifier string, ch domain.Channel) error {
	st, err := s.lookup(sessionID)
	if err != nil {
		return err
	}

	st.mu.Lock()
	if st.sess.StateFor(ch) == domain.StateVerified {
		st.mu.Unlock()
		return fmt.Errorf("channel %s already verified: %w", ch, domain.ErrConflict)
	}
	st.mu.Unlock()

	if s.opts.ResendCooldown > 0 {
		if prev, err := s.store.Get(ctx, identifier, ch); err == nil {
			if age := time.Since(time.Unix(prev.IssuedAt, 0)); age < s.opts.ResendCooldown {
				return fmt.Errorf("code issued %s ago: %w", age.Round(time.Second), domain.ErrResendCooldown)
			}
		}
	}

	code, err := otp.NewCode()
	if err != nil {
		return err
	}
	vc, err := domain.NewVerificationCode(identifier, ch, code, s.opts.CodeTTL)
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, vc); err != nil {
		return fmt.Errorf("store verification code: %w", err)
	}

	st.mu.Lock()
	st.sess.SetState(ch, domain.StateSent)
	st.sess.SetIdentifier(ch, identifier)
	st.lastSeen = time.Now()
	st.mu.Unlock()

	// The code stays stored on delivery failure: the user recovers by
	// resending, and the cooldown window still applies.
	if err := s.deliver(ctx, identifier, ch, code); err != nil {
		slog.Warn("code delivery failed", "channel", ch, "err", err)
		if s.metrics != nil {
			s.metrics.RecordSendFailure(string(ch))
		}
		return fmt.Errorf("deliver %s code: %w", ch, domain.ErrDeliveryFailed)
	}
	if s.metrics != nil {
		s.metrics.RecordCodeSent(string(ch))
	}
	return nil
}

func (s *service) deliver(ctx context.Context, identifier string, ch domain.Channel, code string) error {
	if ch == domain.ChannelEmail {
		return s.mailer.SendOTP(identifier, code, s.opts.CodeTTL)
	}
	return s.sms.SendSMS(ctx, identifier, code)
}

func (s *service) VerifyCode(ctx context.Context, sessionID, identifier string, ch domain.Channel, code string) (bool, error) {
	// Fail fast on shape before touching the store.
	if !otp.WellFormed(code) {
		return false, fmt.Errorf("code must be %d digits: %w", otp.CodeLength, domain.ErrMalformedCode)
	}

	st, err := s.lookup(sessionID)
	if err != nil {
		return false, err
	}

	res, err := s.store.Consume(ctx, identifier, ch, code)
	if err != nil {
		return false, fmt.Errorf("consume verification code: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordVerification(string(ch), consumeLabel(res))
	}

	switch res {
	case domain.ConsumeInvalidCode:
		return false, fmt.Errorf("submitted code does not match: %w", domain.ErrCodeMismatch)
	case domain.ConsumeExpired:
		return false, fmt.Errorf("code past expiry: %w", domain.ErrCodeExpired)
	case domain.ConsumeNotFound:
		return false, fmt.Errorf("no outstanding code for %s: %w", ch, domain.ErrNoPendingCode)
	}

	st.mu.Lock()
	st.sess.SetState(ch, domain.StateVerified)
	st.sess.SetIdentifier(ch, identifier)
	st.lastSeen = time.Now()
	complete := st.sess.Complete()
	fire := complete && !st.notified
	if fire {
		st.notified = true
	}
	snap := st.sess
	st.mu.Unlock()

	if fire {
		if s.metrics != nil {
			s.metrics.RecordSessionCompleted()
		}
		if s.opts.OnComplete != nil {
			s.opts.OnComplete(&snap)
		}
	}
	return complete, nil
}

func (s *service) IsComplete(sess *domain.VerificationSession) bool {
	return sess.Complete()
}

func (s *service) lookup(sessionID string) (*sessionState, error) {
	s.mu.Lock()
	st, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("verification session %s: %w", sessionID, domain.ErrNotFound)
	}
	return st, nil
}

// sweepSessions discards sessions idle past SessionIdleTTL every 5 minutes
// until Close.
func (s *service) sweepSessions() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			for sid, st := range s.sessions {
				st.mu.Lock()
				idle := time.Since(st.lastSeen)
				st.mu.Unlock()
				if idle > s.opts.SessionIdleTTL {
					delete(s.sessions, sid)
				}
			}
			s.mu.Unlock()
		}
	}
}

func consumeLabel(res domain.ConsumeResult) string {
	switch res {
	case domain.ConsumeValid:
		return "valid"
	case domain.ConsumeInvalidCode:
		return "mismatch"
	case domain.ConsumeExpired:
		return "expired"
	default:
		return "not_found"
	}
}
