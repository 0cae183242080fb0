package pairing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pairvault/pairvault/internal/logging"
	"github.com/pairvault/pairvault/internal/metrics"
	"github.com/pairvault/pairvault/internal/notification"
)

const (
	maxTokenLength     = 512
	maxResolveAttempts = 5
)

// Service runs the pairing state machine on top of a Repository.
type Service struct {
	repo     Repository
	notifier notification.Notifier
	metrics  metrics.Recorder
	logger   *slog.Logger
}

// NewService constructs a pairing service. notifier, recorder and logger may be nil.
func NewService(repo Repository, notifier notification.Notifier, recorder metrics.Recorder, logger *slog.Logger) *Service {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{repo: repo, notifier: notifier, metrics: recorder, logger: logger}
}

// Resolve places a scanned token into a pair. Re-scanning a known token never
// changes state. Otherwise the oldest open pair awaiting a different token is
// completed, or a new open pair is created. Lost races are retried from the
// lookup so the caller always sees the winner's state.
func (s *Service) Resolve(ctx context.Context, token string) (Resolution, error) {
	if err := validateToken(token); err != nil {
		return Resolution{}, err
	}

	for attempt := 1; attempt <= maxResolveAttempts; attempt++ {
		res, err := s.resolveOnce(ctx, token)
		if errors.Is(err, ErrConflict) {
			s.metrics.RecordPairConflict()
			s.logger.Debug("pair conflict, re-resolving", "attempt", attempt)
			continue
		}
		if err != nil {
			return Resolution{}, err
		}

		s.metrics.RecordResolution(string(res.Kind))
		if res.Kind == JustCompleted {
			s.notify(ctx, res.Pair)
		}
		return res, nil
	}

	return Resolution{}, fmt.Errorf("resolve after %d attempts: %w", maxResolveAttempts, ErrConflict)
}

func (s *Service) resolveOnce(ctx context.Context, token string) (Resolution, error) {
	pair, err := s.repo.FindByToken(ctx, token)
	switch {
	case err == nil:
		if pair.IsComplete() {
			return Resolution{Kind: AlreadyComplete, Pair: pair}, nil
		}
		return Resolution{Kind: AlreadyOpen, Pair: pair}, nil
	case !errors.Is(err, ErrNotFound):
		return Resolution{}, err
	}

	open, err := s.repo.FindOpenExcluding(ctx, token)
	switch {
	case err == nil:
		completed, err := s.repo.CompleteAtomically(ctx, open.ID, token)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Kind: JustCompleted, Pair: completed}, nil
	case !errors.Is(err, ErrNotFound):
		return Resolution{}, err
	}

	created, err := s.repo.CreateOpen(ctx, token)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Kind: JustOpened, Pair: created}, nil
}

// Scan resolves a token and reports the result in the shape devices display.
func (s *Service) Scan(ctx context.Context, token string) (ScanResult, error) {
	res, err := s.Resolve(ctx, token)
	if err != nil {
		return ScanResult{}, err
	}
	return scanResult(res), nil
}

// Match finds the complete pair formed by two tokens held on one device.
// The tokens may be given in either order.
func (s *Service) Match(ctx context.Context, tokenA, tokenB string) (Pair, error) {
	if err := validateToken(tokenA); err != nil {
		return Pair{}, err
	}
	if err := validateToken(tokenB); err != nil {
		return Pair{}, err
	}

	pair, err := s.repo.FindByToken(ctx, tokenA)
	if err != nil {
		return Pair{}, err
	}
	if !pair.IsComplete() {
		return Pair{}, ErrNotComplete
	}
	if tokenA == tokenB || !pair.Contains(tokenB) {
		return Pair{}, ErrTokenMismatch
	}
	return pair, nil
}

// Get returns a pair by id.
func (s *Service) Get(ctx context.Context, id string) (Pair, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) notify(ctx context.Context, pair Pair) {
	if s.notifier == nil {
		return
	}
	msg := notification.Message{Kind: notification.KindPairCompleted, Destination: pair.ID, Body: pair.Progress()}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.Warn("pair notification failed", "pair_id", pair.ID, "error", err)
	}
}

func validateToken(token string) error {
	if strings.TrimSpace(token) == "" || len(token) > maxTokenLength {
		return ErrInvalidToken
	}
	return nil
}
