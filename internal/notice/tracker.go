package notice

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog/log"
)

type sourceState struct {
	etag         string
	lastModified string
	lastFetched  time.Time
	primed       bool
	seen         map[string]struct{}
}

// Tracker remembers, per source and in memory only, the HTTP validators of the
// last fetch and which notices have been relayed.
type Tracker struct {
	mu          sync.Mutex
	states      map[string]*sourceState
	sendBacklog bool
}

// NewTracker creates a Tracker. Without sendBacklog the first fetch of each source
// only records what is already published.
func NewTracker(sendBacklog bool) *Tracker {
	return &Tracker{states: make(map[string]*sourceState), sendBacklog: sendBacklog}
}

func (t *Tracker) state(source string) *sourceState {
	st, ok := t.states[source]
	if !ok {
		st = &sourceState{seen: make(map[string]struct{})}
		t.states[source] = st
	}
	return st
}

// Validators returns the ETag and Last-Modified values of the previous fetch.
func (t *Tracker) Validators(source string) (etag, lastModified string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.state(source)
	return st.etag, st.lastModified
}

// RecordFetch stores the validators of a completed fetch.
func (t *Tracker) RecordFetch(source, etag, lastModified string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.state(source)
	st.etag, st.lastModified = etag, lastModified
	st.lastFetched = time.Now()
}

// LastFetched reports when the source was last fetched successfully.
func (t *Tracker) LastFetched(source string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.states[source]
	if !ok || st.lastFetched.IsZero() {
		return time.Time{}, false
	}
	return st.lastFetched, true
}

// NewItems returns the unseen notices of feed, oldest first. Hashes of notices no
// longer in the feed are forgotten.
func (t *Tracker) NewItems(source string, feed *gofeed.Feed) []*gofeed.Item {
	if feed == nil || len(feed.Items) == 0 {
		return nil
	}
	items := make([]*gofeed.Item, len(feed.Items))
	copy(items, feed.Items)
	sortOldestFirst(items)

	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.state(source)

	current := make(map[string]struct{}, len(items))
	var fresh []*gofeed.Item
	for _, item := range items {
		hash := ItemHash(item)
		if hash == "" {
			log.Warn().Str("source", source).Str("item_title", item.Title).Msg("Notice has no GUID or Link, cannot track it.")
			continue
		}
		current[hash] = struct{}{}
		if _, ok := st.seen[hash]; !ok {
			fresh = append(fresh, item)
		}
	}
	for hash := range st.seen {
		if _, ok := current[hash]; !ok {
			delete(st.seen, hash)
		}
	}

	if !st.primed {
		st.primed = true
		if !t.sendBacklog {
			for hash := range current {
				st.seen[hash] = struct{}{}
			}
			log.Info().Str("source", source).Int("existing_notices", len(current)).Msg("Primed source; existing notices will not be relayed")
			return nil
		}
	}
	return fresh
}

// MarkSeen records item as relayed.
func (t *Tracker) MarkSeen(source string, item *gofeed.Item) {
	hash := ItemHash(item)
	if hash == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state(source).seen[hash] = struct{}{}
}

// ItemHash identifies a notice by the SHA-256 of its GUID, or of its link when the GUID is empty.
func ItemHash(item *gofeed.Item) string {
	id := item.GUID
	if id == "" {
		id = item.Link
	}
	if id == "" {
		return ""
	}
	return fmt.Sprintf("%x", sha256.Sum256([]byte(id)))
}

func itemTime(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed
	}
	return item.UpdatedParsed
}

// sortOldestFirst orders items newest first, undated last, then reverses, so
// undated items (assumed listed newest first by the publisher) lead in reverse
// feed order.
func sortOldestFirst(items []*gofeed.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := itemTime(items[i]), itemTime(items[j])
		switch {
		case ti == nil:
			return false
		case tj == nil:
			return true
		default:
			return ti.After(*tj)
		}
	})
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}
