// Package render owns the viewer's single authoritative render state and
// the reconciler that merges push- and poll-delivered snapshots into it.
package render

import (
	"time"

	"github.com/marqueehq/marquee/api/types/v1alpha1"
)

// Source tells which channel produced a snapshot or the current state
type Source string

const (
	// SourcePush marks data delivered over the push channel
	SourcePush Source = "push"
	// SourcePoll marks data delivered by the REST poller
	SourcePoll Source = "poll"
	// SourceNone marks the initial empty state
	SourceNone Source = "none"
)

// Snapshot is one immutable observation of "what should render now".
// A nil Content is an authoritative statement that nothing is scheduled;
// failed fetches never become snapshots.
type Snapshot struct {
	// Content is the active item, or nil when nothing is scheduled
	Content *v1alpha1.ContentItem
	// Source tells which channel delivered the snapshot
	Source Source
	// StartedAt is when the observation began (request issue time)
	StartedAt time.Time
	// ObservedAt is when the snapshot was received by this client. Client
	// receipt time is used throughout since clocks are not synchronized.
	ObservedAt time.Time
	// Broadcast marks a server-initiated push, as opposed to a reply
	Broadcast bool
	// Reason is the authority's message, e.g. "No active schedule"
	Reason string
}

// State is the reconciled render state. It is overwritten whole, never
// merged field by field, so readers can never see a splice of two sources.
type State struct {
	// ActiveContent is what the presentation layer should render, or nil
	ActiveContent *v1alpha1.ContentItem
	// Source tells which channel the state came from
	Source Source
	// ObservedAt is the receipt time of the winning snapshot
	ObservedAt time.Time
	// Reason carries the authority's message for empty states
	Reason string
}

// sameContent reports whether two items reference the same library entry
func sameContent(a, b *v1alpha1.ContentItem) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}
