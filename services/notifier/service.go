package notifier

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tech-arch1tect/bilim/config"
	"github.com/tech-arch1tect/bilim/services/logging"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	ErrQueueFull = errors.New("notification queue is full")
	ErrStopped   = errors.New("notifier is stopped")
)

// Mailer delivers a single message synchronously.
type Mailer interface {
	SendMessage(to, subject, message string) error
}

type Notification struct {
	To      string
	Subject string
	Message string
}

// Service hands notifications to a pool of workers so callers never wait on
// delivery. Failed deliveries are retried with a constant delay and then
// dropped with an error log.
type Service struct {
	mailer     Mailer
	logger     *logging.Service
	queue      chan Notification
	workers    int
	maxRetries int
	retryDelay time.Duration
	limiter    *rate.Limiter

	mu      sync.RWMutex
	started bool
	stopped bool
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewService(cfg *config.NotifierConfig, mailer Mailer, logger *logging.Service) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Service{
		mailer:     mailer,
		logger:     logger.Named("notifier"),
		queue:      make(chan Notification, cfg.QueueSize),
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		ctx:        ctx,
		cancel:     cancel,
	}
	if s.workers < 1 {
		s.workers = 1
	}
	if cfg.RatePerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return s
}

// Send enqueues a notification and returns immediately.
func (s *Service) Send(to, subject, message string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.stopped {
		return ErrStopped
	}

	select {
	case s.queue <- Notification{To: to, Subject: subject, Message: message}:
		return nil
	default:
		s.logger.Warn("notification dropped, queue full", zap.String("to", to))
		return ErrQueueFull
	}
}

func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.stopped {
		return
	}
	s.started = true

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.work()
	}
	s.logger.Info("notifier started", zap.Int("workers", s.workers))
}

// Stop refuses new notifications and waits for queued ones to be delivered.
// If ctx expires first, pending retries are abandoned.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	close(s.queue)
	started := s.started
	s.mu.Unlock()

	if !started {
		s.cancel()
		return nil
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		s.logger.Info("notifier stopped")
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		s.logger.Warn("notifier stopped before queue drained")
		return ctx.Err()
	}
}

func (s *Service) work() {
	defer s.wg.Done()
	for n := range s.queue {
		s.deliver(n)
	}
}

func (s *Service) deliver(n Notification) {
	if s.limiter != nil {
		if err := s.limiter.Wait(s.ctx); err != nil {
			s.logger.Warn("notification abandoned", zap.String("to", n.To), zap.Error(err))
			return
		}
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.retryDelay), uint64(s.maxRetries)),
		s.ctx,
	)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		return s.mailer.SendMessage(n.To, n.Subject, n.Message)
	}, policy, func(err error, wait time.Duration) {
		s.logger.Warn("notification delivery failed, retrying",
			zap.String("to", n.To),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", wait),
			zap.Error(err))
	})

	if err != nil {
		s.logger.Error("notification delivery failed",
			zap.String("to", n.To),
			zap.String("subject", n.Subject),
			zap.Int("attempts", attempt),
			zap.Error(err))
		return
	}

	s.logger.Debug("notification delivered", zap.String("to", n.To), zap.Int("attempts", attempt))
}
