// Package directory keeps a periodically refreshed snapshot of the staff
// list. The snapshot is replaced wholesale on each refresh and never mutated,
// so readers can hold on to it without locking.
package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"apptsync/internal/guard"
	appLog "apptsync/internal/log"
	"apptsync/internal/model"
)

const refreshTimeout = 30 * time.Second

// Source provides the current staff list.
type Source interface {
	ListStaff(ctx context.Context) ([]model.StaffMember, error)
}

// Snapshot is an immutable view of the staff list.
type Snapshot struct {
	Staff     []model.StaffMember
	UpdatedAt time.Time

	byID map[int32]model.StaffMember
}

func newSnapshot(staff []model.StaffMember, at time.Time) Snapshot {
	sorted := make([]model.StaffMember, len(staff))
	copy(sorted, staff)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	byID := make(map[int32]model.StaffMember, len(sorted))
	for _, s := range sorted {
		byID[s.ID] = s
	}
	return Snapshot{Staff: sorted, UpdatedAt: at, byID: byID}
}

// Lookup returns the staff member with the given id.
func (s Snapshot) Lookup(id int32) (model.StaffMember, bool) {
	m, ok := s.byID[id]
	return m, ok
}

// Enrich fills StaffName on appointments that reference a known staff
// member but carry no name snapshot. It returns a new slice.
func (s Snapshot) Enrich(apps []model.PresentationAppointment) []model.PresentationAppointment {
	out := make([]model.PresentationAppointment, len(apps))
	for i, app := range apps {
		if app.StaffName == "" {
			if id, ok := guard.ValidateBoundedRef(app.StaffRef()); ok {
				if m, ok := s.Lookup(id); ok {
					app.StaffName = m.Name
				}
			}
		}
		out[i] = app
	}
	return out
}

// Directory refreshes a Snapshot from a Source on a cron schedule.
type Directory struct {
	src Source
	now func() time.Time

	mu   sync.RWMutex
	snap Snapshot

	cronMu sync.Mutex
	cron   *cron.Cron
	done   chan struct{} // closed when cron is stopped
}

// New returns a Directory with an empty snapshot.
func New(src Source) *Directory {
	return &Directory{
		src:  src,
		now:  time.Now,
		snap: newSnapshot(nil, time.Time{}),
	}
}

// Snapshot returns the current snapshot.
func (d *Directory) Snapshot() Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snap
}

// Refresh fetches the staff list and swaps in a new snapshot. On error the
// previous snapshot is kept.
func (d *Directory) Refresh(ctx context.Context) error {
	if d.src == nil {
		return errors.New("directory source not configured")
	}
	staff, err := d.src.ListStaff(ctx)
	if err != nil {
		return fmt.Errorf("refresh staff directory: %w", err)
	}

	snap := newSnapshot(staff, d.now())
	d.mu.Lock()
	d.snap = snap
	d.mu.Unlock()

	appLog.Info("staff directory refreshed", "staff_count", len(snap.Staff))
	return nil
}

// Start performs an initial refresh and then refreshes on the cron schedule
// until ctx is canceled or Stop is called. A failed initial refresh is
// logged, not returned; only an invalid schedule is an error.
func (d *Directory) Start(ctx context.Context, schedule string) error {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser))

	_, err := c.AddFunc(schedule, func() {
		rctx, cancel := context.WithTimeout(ctx, refreshTimeout)
		defer cancel()
		if err := d.Refresh(rctx); err != nil {
			appLog.Error("scheduled staff refresh failed", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}

	rctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	if err := d.Refresh(rctx); err != nil {
		appLog.Error("initial staff refresh failed", err)
	}
	cancel()

	d.cronMu.Lock()
	d.stopLocked()
	done := make(chan struct{})
	d.cron, d.done = c, done
	c.Start()
	d.cronMu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			d.cronMu.Lock()
			if d.done == done {
				d.stopLocked()
			}
			d.cronMu.Unlock()
		case <-done:
		}
	}()

	appLog.Info("staff directory refresher started", "schedule", schedule)
	return nil
}

// Stop halts scheduled refreshes. It is safe to call more than once.
func (d *Directory) Stop() {
	d.cronMu.Lock()
	defer d.cronMu.Unlock()
	d.stopLocked()
}

func (d *Directory) stopLocked() {
	if d.cron == nil {
		return
	}
	<-d.cron.Stop().Done()
	close(d.done)
	d.cron, d.done = nil, nil
}
