package analytics

import (
	"log"
	"sync"
	"time"

	"school-library-backend/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Event kinds.
const (
	KindDownload   = "download"
	KindLoanStatus = "loan_status"
)

type pendingEvent struct {
	Event      models.AnalyticsEvent
	RetryAt    time.Time
	RetryCount int
	MaxRetries int
}

// Recorder buffers analytics events and writes them to the database in the
// background. Recording is best-effort: Record never blocks the caller and a
// failed write never surfaces to the primary operation, it is retried with
// backoff until MaxRetries.
type Recorder struct {
	db    *gorm.DB
	mu    sync.Mutex
	items []*pendingEvent
}

func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{
		db:    db,
		items: make([]*pendingEvent, 0),
	}
}

// Record enqueues an event for the background writer.
func (r *Recorder) Record(kind, bookUid, userUid, loanUid, detail string) {
	event := models.AnalyticsEvent{
		EventUid:   uuid.New().String(),
		Kind:       kind,
		BookUid:    bookUid,
		UserUid:    userUid,
		LoanUid:    loanUid,
		Detail:     detail,
		RecordedAt: time.Now().UTC(),
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, &pendingEvent{
		Event:      event,
		RetryAt:    time.Now(),
		MaxRetries: 3,
	})
}

// Drain writes every due event. Failed writes are re-queued with backoff,
// dropped after MaxRetries.
func (r *Recorder) Drain() {
	for {
		item := r.dequeue()
		if item == nil {
			return
		}
		if err := r.db.Create(&item.Event).Error; err != nil {
			item.RetryCount++
			if item.RetryCount > item.MaxRetries {
				log.Printf("Dropping analytics event %s after %d attempts: %v",
					item.Event.EventUid, item.RetryCount, err)
				continue
			}
			item.RetryAt = time.Now().Add(time.Duration(item.RetryCount) * time.Second)
			r.mu.Lock()
			r.items = append(r.items, item)
			r.mu.Unlock()
		}
	}
}

// Run drains the queue on the given interval until stop is closed.
func (r *Recorder) Run(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.Drain()
		case <-stop:
			r.Drain()
			return
		}
	}
}

func (r *Recorder) dequeue() *pendingEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for i, item := range r.items {
		if item.RetryAt.Before(now) || item.RetryAt.Equal(now) {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return item
		}
	}
	return nil
}

// Size returns the number of queued events.
func (r *Recorder) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
