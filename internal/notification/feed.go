// Package notification holds the in-memory maintenance notification feed
// and the scanner that fills it from active schedules.
package notification

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/gymops/internal/model"
)

const CategoryMaintenance = "maintenance"

type Notification struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Priority    model.Priority `json:"priority"`
	Category    string         `json:"category"`
	Title       string         `json:"title"`
	Message     string         `json:"message"`
	EquipmentID int64          `json:"equipment_id"`
	ScheduleID  int64          `json:"schedule_id"`
	DaysOverdue int            `json:"days_overdue"`
	Read        bool           `json:"read"`
	CreatedAt   time.Time      `json:"created_at"`
	ReadAt      *time.Time     `json:"read_at,omitempty"`
}

// dedupKey identifies the same logical notification across scans.
type dedupKey struct {
	typ         string
	equipmentID int64
	title       string
	scheduleID  int64
}

func keyOf(n *Notification) dedupKey {
	return dedupKey{n.Type, n.EquipmentID, n.Title, n.ScheduleID}
}

type entry struct {
	n   Notification
	seq uint64
}

// minEvictedKeys is the floor on how many evicted dedup keys a bounded
// feed remembers.
const minEvictedKeys = 256

// Feed is a bounded, process-lifetime notification store. Unread entries
// are indexed by dedup key so an unresolved item is only listed once.
//
// An unread entry pushed out by the size bound leaves its key in evicted,
// so the next scan does not announce the same item again. The key is
// forgotten once a clean scan no longer reports it, or on MarkAllRead.
type Feed struct {
	mu         sync.RWMutex
	items      map[string]*entry
	unread     map[dedupKey]string
	evicted    map[dedupKey]uint64
	seq        uint64
	maxEntries int
	now        func() time.Time
}

type FeedOption func(*Feed)

// WithNow overrides the feed's time source.
func WithNow(now func() time.Time) FeedOption {
	return func(f *Feed) {
		f.now = now
	}
}

// NewFeed returns a feed holding at most maxEntries notifications. A
// non-positive maxEntries means unbounded.
func NewFeed(maxEntries int, opts ...FeedOption) *Feed {
	f := &Feed{
		items:      make(map[string]*entry),
		unread:     make(map[dedupKey]string),
		evicted:    make(map[dedupKey]uint64),
		maxEntries: maxEntries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Add inserts n unless an unread notification with the same dedup key
// exists. In that case the existing entry's priority, message and days
// overdue are refreshed and it is returned with created=false. A key whose
// unread entry was evicted for space is also not re-created.
func (f *Feed) Add(n Notification) (out Notification, created bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := keyOf(&n)
	if id, ok := f.unread[key]; ok {
		e := f.items[id]
		e.n.Priority = n.Priority
		e.n.Message = n.Message
		e.n.DaysOverdue = n.DaysOverdue
		return e.n, false
	}
	if _, ok := f.evicted[key]; ok {
		return n, false
	}

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Category == "" {
		n.Category = CategoryMaintenance
	}
	n.Read = false
	n.ReadAt = nil
	n.CreatedAt = f.now().UTC()

	f.seq++
	f.items[n.ID] = &entry{n: n, seq: f.seq}
	f.unread[key] = n.ID
	f.evict()
	return n, true
}

// evict trims the feed to maxEntries, dropping the oldest read entries
// before any unread one. Callers hold f.mu.
func (f *Feed) evict() {
	if f.maxEntries <= 0 {
		return
	}
	for len(f.items) > f.maxEntries {
		var oldestRead, oldestUnread *entry
		for _, e := range f.items {
			if e.n.Read {
				if oldestRead == nil || e.seq < oldestRead.seq {
					oldestRead = e
				}
			} else if oldestUnread == nil || e.seq < oldestUnread.seq {
				oldestUnread = e
			}
		}
		victim := oldestRead
		if victim == nil {
			victim = oldestUnread
			f.rememberEvicted(keyOf(&victim.n), victim.seq)
		}
		f.remove(victim)
	}
}

// rememberEvicted records key, dropping the oldest remembered keys past the
// limit. Callers hold f.mu.
func (f *Feed) rememberEvicted(key dedupKey, seq uint64) {
	f.evicted[key] = seq
	limit := max(4*f.maxEntries, minEvictedKeys)
	for len(f.evicted) > limit {
		var oldest dedupKey
		var oldestSeq uint64
		first := true
		for k, s := range f.evicted {
			if first || s < oldestSeq {
				oldest, oldestSeq, first = k, s, false
			}
		}
		delete(f.evicted, oldest)
	}
}

// forgetEvicted drops remembered keys that are not in seen. The scanner
// calls it after a pass that listed every due schedule.
func (f *Feed) forgetEvicted(seen map[dedupKey]struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k := range f.evicted {
		if _, ok := seen[k]; !ok {
			delete(f.evicted, k)
		}
	}
}

func (f *Feed) remove(e *entry) {
	delete(f.items, e.n.ID)
	if !e.n.Read {
		delete(f.unread, keyOf(&e.n))
	}
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	UnreadOnly bool
	Priority   model.Priority
	Category   string
	Limit      int
}

// List returns matching notifications, most severe first and newest first
// within a severity.
func (f *Feed) List(filter Filter) []Notification {
	f.mu.RLock()
	matched := make([]*entry, 0, len(f.items))
	for _, e := range f.items {
		if filter.UnreadOnly && e.n.Read {
			continue
		}
		if filter.Priority != "" && e.n.Priority != filter.Priority {
			continue
		}
		if filter.Category != "" && e.n.Category != filter.Category {
			continue
		}
		matched = append(matched, e)
	}
	f.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		ri, rj := matched[i].n.Priority.Rank(), matched[j].n.Priority.Rank()
		if ri != rj {
			return ri > rj
		}
		return matched[i].seq > matched[j].seq
	})

	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	out := make([]Notification, len(matched))
	for i, e := range matched {
		out[i] = e.n
	}
	return out
}

func (f *Feed) Get(id string) (Notification, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	e, ok := f.items[id]
	if !ok {
		return Notification{}, false
	}
	return e.n, true
}

// MarkRead marks one notification read. Marking a read notification again
// is a no-op.
func (f *Feed) MarkRead(id string) (Notification, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.items[id]
	if !ok {
		return Notification{}, false
	}
	f.markRead(e, f.now().UTC())
	return e.n, true
}

// MarkAllRead marks every unread notification read and returns how many
// changed.
func (f *Feed) MarkAllRead() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now().UTC()
	clear(f.evicted)
	n := 0
	for _, e := range f.items {
		if !e.n.Read {
			f.markRead(e, now)
			n++
		}
	}
	return n
}

func (f *Feed) markRead(e *entry, at time.Time) {
	if e.n.Read {
		return
	}
	delete(f.unread, keyOf(&e.n))
	e.n.Read = true
	e.n.ReadAt = &at
}

func (f *Feed) Delete(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.items[id]
	if !ok {
		return false
	}
	f.remove(e)
	return true
}

// PurgeRead drops read notifications that were read more than olderThan
// ago and returns how many were dropped.
func (f *Feed) PurgeRead(olderThan time.Duration) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	cutoff := f.now().UTC().Add(-olderThan)
	n := 0
	for _, e := range f.items {
		if e.n.Read && e.n.ReadAt != nil && !e.n.ReadAt.After(cutoff) {
			f.remove(e)
			n++
		}
	}
	return n
}

func (f *Feed) UnreadCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.unread)
}

func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.items)
}

// Summary counts notifications; the per-priority and per-category counts
// cover unread notifications only.
type Summary struct {
	Total      int                    `json:"total"`
	Unread     int                    `json:"unread"`
	ByPriority map[model.Priority]int `json:"by_priority"`
	ByCategory map[string]int         `json:"by_category"`
}

func (f *Feed) Summary() Summary {
	f.mu.RLock()
	defer f.mu.RUnlock()

	s := Summary{
		Total:      len(f.items),
		ByPriority: make(map[model.Priority]int, len(model.Priorities)),
		ByCategory: make(map[string]int),
	}
	for _, p := range model.Priorities {
		s.ByPriority[p] = 0
	}
	for _, e := range f.items {
		if e.n.Read {
			continue
		}
		s.Unread++
		s.ByPriority[e.n.Priority]++
		s.ByCategory[e.n.Category]++
	}
	return s
}
