package worker

import (
	"context"
	"errors"
	"time"

	"travelbook/internal/metrics"
	"travelbook/internal/models"
	"travelbook/internal/repository"

	"github.com/rs/zerolog"
)

// PaidConfirmer persists the confirmed status of paid bookings.
type PaidConfirmer interface {
	ConfirmPaid(ctx context.Context) (int, error)
}

// UserIndex lists the users that exist in the relational store.
type UserIndex interface {
	UserIDs(ctx context.Context) (map[string]struct{}, error)
}

// Reseeder drops cached allocator state so the next allocation re-reads the table.
type Reseeder interface {
	Reconcile()
}

// Reconciler periodically repairs what the request path leaves behind when
// the row store and the relational store disagree.
type Reconciler struct {
	bookings    PaidConfirmer
	users       UserIndex
	tables      *repository.Tables
	allocators  []Reseeder
	interval    time.Duration
	orphanGrace time.Duration
	logger      *zerolog.Logger
	now         func() time.Time
}

// NewReconciler builds a reconciler. users may be nil, which disables the
// orphan user sweep.
func NewReconciler(bookings PaidConfirmer, users UserIndex, tables *repository.Tables, interval, orphanGrace time.Duration, logger *zerolog.Logger, allocators ...Reseeder) *Reconciler {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if orphanGrace <= 0 {
		orphanGrace = 15 * time.Minute
	}
	return &Reconciler{
		bookings:    bookings,
		users:       users,
		tables:      tables,
		allocators:  allocators,
		interval:    interval,
		orphanGrace: orphanGrace,
		logger:      logger,
		now:         time.Now,
	}
}

func (r *Reconciler) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info().Dur("interval", r.interval).Msg("reconciler started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("reconciler stopped")
			return
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error().Err(err).Msg("reconciliation pass failed")
			}
		}
	}
}

// RunOnce performs a single reconciliation pass. Every step runs even when
// an earlier one fails; the errors are joined.
func (r *Reconciler) RunOnce(ctx context.Context) error {
	var errs []error

	if r.bookings != nil {
		n, err := r.bookings.ConfirmPaid(ctx)
		metrics.AddReconciled("booking_status", n)
		if err != nil {
			errs = append(errs, err)
		}
	}

	if r.users != nil {
		n, err := r.sweepOrphanUsers(ctx)
		metrics.AddReconciled("orphan_user", n)
		if err != nil {
			errs = append(errs, err)
		}
	}

	for _, a := range r.allocators {
		a.Reconcile()
	}

	return errors.Join(errs...)
}

// sweepOrphanUsers clears User rows, and their sessions, whose registration
// never committed on the relational side. Rows younger than the grace period
// may belong to a registration still in flight and are left alone.
func (r *Reconciler) sweepOrphanUsers(ctx context.Context) (int, error) {
	known, err := r.users.UserIDs(ctx)
	if err != nil {
		return 0, err
	}
	sheetUsers, err := r.tables.Users(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := r.now().Add(-r.orphanGrace)
	orphans := map[string]struct{}{}
	for _, u := range sheetUsers {
		if _, ok := known[u.ID]; ok {
			continue
		}
		if u.CreatedAt.After(cutoff) {
			continue
		}
		orphans[u.ID] = struct{}{}
	}
	if len(orphans) == 0 {
		return 0, nil
	}

	sessions, err := r.tables.Sessions(ctx)
	if err != nil {
		return 0, err
	}
	for _, s := range sessions {
		if _, ok := orphans[s.UserID]; !ok {
			continue
		}
		if err := r.tables.DeleteByID(ctx, models.TableSession, s.ID); err != nil {
			return 0, err
		}
	}

	n := 0
	for id := range orphans {
		if err := r.tables.DeleteByID(ctx, models.TableUser, id); err != nil {
			return n, err
		}
		n++
		r.logger.Info().Str("user_id", id).Msg("cleared orphan user row")
	}
	return n, nil
}
