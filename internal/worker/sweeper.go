// Package worker runs the periodic maintenance passes that keep the
// admission pipeline moving without request traffic: queue admission
// waves, processing-window expiry, cart expiry and booking
// reconciliation.
package worker

import (
	"context"
	"log"
	"time"
)

// AdmissionRunner is the slice of the queue service the sweeper
// drives.
type AdmissionRunner interface {
	RunAdmissions(ctx context.Context) (int, error)
	ExpireEntries(ctx context.Context) (int64, error)
}

// CartExpirer expires lapsed carts and releases their holds.
type CartExpirer interface {
	ExpireCarts(ctx context.Context) (int, error)
}

// BookingReconciler resolves bookings stuck in pending.
type BookingReconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

// Sweeper ticks on a fixed interval and runs the four maintenance
// passes in order. Each pass failure is logged and the remaining
// passes still run; a broken sweep must not stop inventory from
// being released.
type Sweeper struct {
	Queue    AdmissionRunner
	Carts    CartExpirer
	Bookings BookingReconciler
	Interval time.Duration
}

// Run blocks until ctx is cancelled. One pass runs immediately on
// start so a restarted server catches up without waiting for the
// first tick.
func (s *Sweeper) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs a single pass of every maintenance job.
func (s *Sweeper) Sweep(ctx context.Context) {
	if n, err := s.Queue.ExpireEntries(ctx); err != nil {
		log.Printf("sweeper: expire queue entries failed: %v", err)
	} else if n > 0 {
		log.Printf("sweeper: expired %d overdue queue entries", n)
	}
	if n, err := s.Queue.RunAdmissions(ctx); err != nil {
		log.Printf("sweeper: run admissions failed: %v", err)
	} else if n > 0 {
		log.Printf("sweeper: admitted %d waiting users", n)
	}
	if n, err := s.Carts.ExpireCarts(ctx); err != nil {
		log.Printf("sweeper: expire carts failed: %v", err)
	} else if n > 0 {
		log.Printf("sweeper: expired %d carts", n)
	}
	if n, err := s.Bookings.Reconcile(ctx); err != nil {
		log.Printf("sweeper: reconcile bookings failed: %v", err)
	} else if n > 0 {
		log.Printf("sweeper: reconciled %d stale bookings", n)
	}
}
