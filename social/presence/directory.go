// Package presence tracks per-account liveness and fans out changes to
// subscribed accounts without polling.
package presence

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/emberforge/socialcore/social"
)

// Status is an account's coarse liveness state.
type Status string

const (
	StatusOnline  Status = "ONLINE"
	StatusAway    Status = "AWAY"
	StatusDND     Status = "DND"
	StatusOffline Status = "OFFLINE"
)

// ErrInvalidStatus is returned when a status value is not recognized.
var ErrInvalidStatus = social.NewError(social.ErrInvalidArgument, "invalid presence status")

func validStatus(s Status) bool {
	switch s {
	case StatusOnline, StatusAway, StatusDND, StatusOffline:
		return true
	}
	return false
}

// Record is the full presence state of one account. Updates replace the
// record wholesale; there is no partial patch.
type Record struct {
	AccountID   string         `json:"account_id"`
	Status      Status         `json:"status"`
	Activity    string         `json:"activity"`
	Properties  map[string]any `json:"properties"`
	LastUpdated time.Time      `json:"last_updated"`
}

func (r *Record) clone() Record {
	cp := *r
	if r.Properties != nil {
		cp.Properties = make(map[string]any, len(r.Properties))
		for k, v := range r.Properties {
			cp.Properties[k] = v
		}
	}
	return cp
}

// Options tune directory behaviour. Zero values fall back to defaults.
type Options struct {
	// IdleThreshold is how long a non-offline record may sit untouched
	// before a sweep resets it to OFFLINE.
	IdleThreshold time.Duration
	// GCThreshold is how long an offline record may linger before a
	// sweep removes it and its subscription edges entirely.
	GCThreshold time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Directory owns presence records and the subscriber graph. Records are
// created lazily on first update; a read for an unknown account gets a
// synthesized OFFLINE record that is never stored.
type Directory struct {
	mu      sync.RWMutex
	records map[string]*Record
	// subscribersOf[target] is the set of accounts watching target.
	subscribersOf map[string]map[string]struct{}
	// targetsOf[subscriber] is the reverse index for cheap teardown.
	targetsOf map[string]map[string]struct{}

	transport social.Transport
	logger    *zap.Logger

	idleThreshold time.Duration
	gcThreshold   time.Duration
	now           func() time.Time
}

func NewDirectory(transport social.Transport, logger *zap.Logger, opts Options) *Directory {
	if opts.IdleThreshold <= 0 {
		opts.IdleThreshold = 30 * time.Minute
	}
	if opts.GCThreshold <= 0 {
		opts.GCThreshold = 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if transport == nil {
		transport = social.NopTransport{}
	}
	return &Directory{
		records:       make(map[string]*Record),
		subscribersOf: make(map[string]map[string]struct{}),
		targetsOf:     make(map[string]map[string]struct{}),
		transport:     transport,
		logger:        logger,
		idleThreshold: opts.IdleThreshold,
		gcThreshold:   opts.GCThreshold,
		now:           opts.Now,
	}
}

// SetPresence replaces the account's record and notifies its subscribers.
func (d *Directory) SetPresence(accountID string, status Status, activity string, properties map[string]any) (Record, error) {
	if !validStatus(status) {
		return Record{}, ErrInvalidStatus
	}

	// Copy the map so a caller retaining it cannot mutate stored state.
	var props map[string]any
	if properties != nil {
		props = make(map[string]any, len(properties))
		for k, v := range properties {
			props[k] = v
		}
	}

	events := &social.EventBuffer{}
	d.mu.Lock()
	rec := &Record{
		AccountID:   accountID,
		Status:      status,
		Activity:    activity,
		Properties:  props,
		LastUpdated: d.now(),
	}
	d.records[accountID] = rec
	snapshot := rec.clone()
	d.fanOutLocked(snapshot, events)
	d.mu.Unlock()

	events.Flush(d.transport)
	return snapshot, nil
}

// GetPresence never fails: an unknown account reads as OFFLINE as of
// now, without creating a record.
func (d *Directory) GetPresence(accountID string) Record {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if rec, ok := d.records[accountID]; ok {
		return rec.clone()
	}
	return Record{AccountID: accountID, Status: StatusOffline, LastUpdated: d.now()}
}

// GetBulk resolves presence for many accounts in one lock acquisition.
func (d *Directory) GetBulk(accountIDs []string) map[string]Record {
	out := make(map[string]Record, len(accountIDs))
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, id := range accountIDs {
		if rec, ok := d.records[id]; ok {
			out[id] = rec.clone()
		} else {
			out[id] = Record{AccountID: id, Status: StatusOffline, LastUpdated: d.now()}
		}
	}
	return out
}

// Subscribe adds directed edges subscriber -> each target. Existing
// edges are left alone.
func (d *Directory) Subscribe(subscriberID string, targetIDs ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, target := range targetIDs {
		if target == subscriberID {
			continue
		}
		d.addEdgeLocked(subscriberID, target)
	}
}

// Unsubscribe removes the given edges. Removing an absent edge is not
// an error.
func (d *Directory) Unsubscribe(subscriberID string, targetIDs ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, target := range targetIDs {
		d.removeEdgeLocked(subscriberID, target)
	}
}

// UnsubscribeAll removes every edge where the account is the subscriber.
func (d *Directory) UnsubscribeAll(subscriberID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dropSubscriberLocked(subscriberID)
}

// OnDisconnect marks the account OFFLINE, clears its activity, notifies
// its subscribers, and tears down the account's own subscriptions.
// Edges pointing at the account stay: their owners just got told it
// went offline and may want future updates too.
func (d *Directory) OnDisconnect(accountID string) {
	events := &social.EventBuffer{}
	d.mu.Lock()
	rec, ok := d.records[accountID]
	if ok {
		rec.Status = StatusOffline
		rec.Activity = ""
		rec.Properties = nil
		rec.LastUpdated = d.now()
		d.fanOutLocked(rec.clone(), events)
	}
	d.dropSubscriberLocked(accountID)
	d.mu.Unlock()

	events.Flush(d.transport)
}

// Sweep resets long-idle records to OFFLINE, keeping them for last-seen
// reads, and garbage-collects records offline past the longer threshold
// together with every subscription edge touching them. Returns the
// number of demoted and removed records.
func (d *Directory) Sweep() (demoted, removed int) {
	events := &social.EventBuffer{}
	d.mu.Lock()
	now := d.now()
	for id, rec := range d.records {
		idle := now.Sub(rec.LastUpdated)
		if rec.Status == StatusOffline {
			if idle >= d.gcThreshold {
				delete(d.records, id)
				d.dropSubscriberLocked(id)
				d.dropTargetLocked(id)
				removed++
			}
			continue
		}
		if idle >= d.idleThreshold {
			rec.Status = StatusOffline
			rec.Activity = ""
			rec.Properties = nil
			d.fanOutLocked(rec.clone(), events)
			demoted++
		}
	}
	d.mu.Unlock()

	events.Flush(d.transport)
	if demoted > 0 || removed > 0 {
		d.logger.Info("presence sweep",
			zap.Int("demoted", demoted),
			zap.Int("removed", removed))
	}
	return demoted, removed
}

// Summary reports record counts per status for the admin surface.
func (d *Directory) Summary() map[Status]int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[Status]int, 4)
	for _, rec := range d.records {
		out[rec.Status]++
	}
	return out
}

// SubscriptionCount reports the total number of subscription edges.
func (d *Directory) SubscriptionCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	total := 0
	for _, set := range d.subscribersOf {
		total += len(set)
	}
	return total
}

// Subscribers returns the accounts currently watching the target.
func (d *Directory) Subscribers(targetID string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	set := d.subscribersOf[targetID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

func (d *Directory) fanOutLocked(snapshot Record, events *social.EventBuffer) {
	for subscriber := range d.subscribersOf[snapshot.AccountID] {
		events.Add(subscriber, social.EventPresenceUpdated, map[string]any{
			"account_id": snapshot.AccountID,
			"record":     snapshot,
		})
	}
}

func (d *Directory) addEdgeLocked(subscriber, target string) {
	subs, ok := d.subscribersOf[target]
	if !ok {
		subs = make(map[string]struct{})
		d.subscribersOf[target] = subs
	}
	subs[subscriber] = struct{}{}

	targets, ok := d.targetsOf[subscriber]
	if !ok {
		targets = make(map[string]struct{})
		d.targetsOf[subscriber] = targets
	}
	targets[target] = struct{}{}
}

func (d *Directory) removeEdgeLocked(subscriber, target string) {
	if subs, ok := d.subscribersOf[target]; ok {
		delete(subs, subscriber)
		if len(subs) == 0 {
			delete(d.subscribersOf, target)
		}
	}
	if targets, ok := d.targetsOf[subscriber]; ok {
		delete(targets, target)
		if len(targets) == 0 {
			delete(d.targetsOf, subscriber)
		}
	}
}

// dropSubscriberLocked removes every edge where the account watches
// someone else.
func (d *Directory) dropSubscriberLocked(subscriberID string) {
	for target := range d.targetsOf[subscriberID] {
		if subs, ok := d.subscribersOf[target]; ok {
			delete(subs, subscriberID)
			if len(subs) == 0 {
				delete(d.subscribersOf, target)
			}
		}
	}
	delete(d.targetsOf, subscriberID)
}

// dropTargetLocked removes every edge where the account is being watched.
func (d *Directory) dropTargetLocked(targetID string) {
	for subscriber := range d.subscribersOf[targetID] {
		if targets, ok := d.targetsOf[subscriber]; ok {
			delete(targets, targetID)
			if len(targets) == 0 {
				delete(d.targetsOf, subscriber)
			}
		}
	}
	delete(d.subscribersOf, targetID)
}
