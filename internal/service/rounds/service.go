package rounds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wireplan-server/internal/core"
	"github.com/vovakirdan/wireplan-server/internal/store"
)

const (
	// DefaultLimit is the page size used when a caller does not ask for one.
	DefaultLimit = 20
	// MaxLimit caps a single page.
	MaxLimit = 100

	defaultQueue = 64
)

// ErrInvalidLimit is returned for a page size outside 1..MaxLimit.
var ErrInvalidLimit = errors.New("invalid limit")

// Service archives revealed rounds off the hub goroutine and serves the history.
// It implements core.RoundRecorder.
type Service struct {
	store store.RoundStore
	queue chan core.RoundRecord
	log   zerolog.Logger
	now   func() time.Time
}

// New creates a round archive writing to st. queue bounds how many rounds may wait for the database.
func New(st store.RoundStore, logger *zerolog.Logger, queue int) *Service {
	if queue <= 0 {
		queue = defaultQueue
	}
	s := &Service{
		store: st,
		queue: make(chan core.RoundRecord, queue),
		log:   zerolog.Nop(),
		now:   time.Now,
	}
	if logger != nil {
		s.log = logger.With().Str("module", "service.rounds").Logger()
	}
	return s
}

// Record queues rec for persistence without blocking. Rounds are dropped when the queue is full.
func (s *Service) Record(rec core.RoundRecord) {
	round := toRound(rec, s.now())
	select {
	case s.queue <- round:
	default:
		s.log.Warn().Str("room", string(rec.Room)).Int("round", rec.Round).Msg("archive queue full, round dropped")
	}
}

// Run writes queued rounds until ctx is cancelled, then flushes what is left.
func (s *Service) Run(ctx context.Context) {
	for {
		select {
		case rec := <-s.queue:
			s.save(ctx, rec)
		case <-ctx.Done():
			s.flush()
			return
		}
	}
}

func (s *Service) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case rec := <-s.queue:
			s.save(ctx, rec)
		default:
			return
		}
	}
}

func (s *Service) save(ctx context.Context, rec core.RoundRecord) {
	round := &store.Round{
		RoomID:     string(rec.Room),
		Number:     rec.Round,
		RevealedAt: rec.RevealedAt,
		Estimates:  make([]store.Estimate, 0, len(rec.Estimates)),
	}
	for _, e := range rec.Estimates {
		round.Estimates = append(round.Estimates, store.Estimate{
			ParticipantID: string(e.ID),
			Name:          e.Name,
			Value:         string(e.Value),
		})
	}
	if err := s.store.SaveRound(ctx, round); err != nil {
		s.log.Error().Err(err).Str("room", round.RoomID).Int("round", round.Number).Msg("archive round")
		return
	}
	s.log.Debug().Int64("id", round.ID).Str("room", round.RoomID).Int("round", round.Number).Msg("round archived")
}

// List returns archived rounds newest first.
func (s *Service) List(ctx context.Context, limit int, beforeID *int64) ([]*store.Round, error) {
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 0 || limit > MaxLimit {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	rounds, err := s.store.ListRounds(ctx, limit, beforeID)
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	return rounds, nil
}

// toRound stamps rec with its reveal time if the coordinator did not.
func toRound(rec core.RoundRecord, now time.Time) core.RoundRecord {
	if rec.RevealedAt.IsZero() {
		rec.RevealedAt = now
	}
	return rec
}
