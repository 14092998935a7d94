// Package feed turns a subscription into the list of events its calendar
// feed publishes.
package feed

import (
	"fmt"
	"time"

	"github.com/cadenza-app/cadenza/internal/model"
	"github.com/cadenza-app/cadenza/internal/store"
)

// DefaultLookback is how far behind now a feed reaches when the
// subscription has no explicit window. Recent past events stay visible so
// calendar clients do not drop what just happened.
const DefaultLookback = 7 * 24 * time.Hour

// MaxEvents bounds a single feed. A subscription whose window selects more
// is rejected rather than silently truncated; the subscriber narrows the
// window or the filter.
const MaxEvents = 500

// TooManyEventsError reports a feed that exceeds MaxEvents.
type TooManyEventsError struct {
	Count int
	Limit int
}

func (e *TooManyEventsError) Error() string {
	return fmt.Sprintf("feed selects %d events, limit is %d", e.Count, e.Limit)
}

// Selector resolves subscriptions to publishable events.
type Selector struct {
	events      *store.EventStore
	assignments *store.AssignmentStore
	groups      *store.GroupStore
}

func NewSelector(db store.DBTX) *Selector {
	return &Selector{
		events:      store.NewEventStore(db),
		assignments: store.NewAssignmentStore(db),
		groups:      store.NewGroupStore(db),
	}
}

// Select returns the events the subscription publishes, ordered by start
// time. TENTATIVE events never appear; CANCELLED ones do, carrying their
// status, so clients retract them. The window defaults to
// [now-DefaultLookback, now+horizon] where the subscription leaves either
// edge open.
func (s *Selector) Select(sub *model.Subscription, now time.Time, horizon time.Duration) ([]model.Event, error) {
	from := now.Add(-DefaultLookback)
	if sub.WindowStart != nil {
		from = *sub.WindowStart
	}
	to := now.Add(horizon)
	if sub.WindowEnd != nil {
		to = *sub.WindowEnd
	}

	events, err := s.events.ListPublishable(sub.ChurchID, from, to)
	if err != nil {
		return nil, err
	}

	events, err = s.narrow(sub, events)
	if err != nil {
		return nil, err
	}

	if len(events) > MaxEvents {
		return nil, &TooManyEventsError{Count: len(events), Limit: MaxEvents}
	}
	return events, nil
}

func (s *Selector) narrow(sub *model.Subscription, events []model.Event) ([]model.Event, error) {
	switch sub.FilterType {
	case model.FilterAll:
		return events, nil

	case model.FilterEventTypes:
		wanted := idSet(sub.FilterIDs)
		var out []model.Event
		for _, e := range events {
			if e.EventTypeID != nil && wanted[*e.EventTypeID] {
				out = append(out, e)
			}
		}
		return out, nil

	case model.FilterGroups:
		return s.narrowByGroups(sub, events)

	case model.FilterOpenPositions:
		return s.narrowByOpenSlots(events)
	}
	return nil, fmt.Errorf("unknown filter type: %q", sub.FilterType)
}

// narrowByGroups keeps events whose roster touches any watched group,
// either through a group-level slot or a slot filled by one of the group's
// members.
func (s *Selector) narrowByGroups(sub *model.Subscription, events []model.Event) ([]model.Event, error) {
	wanted := idSet(sub.FilterIDs)
	members := make(map[int64]bool)
	for _, groupID := range sub.FilterIDs {
		ids, err := s.groups.MemberIDs(groupID)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			members[id] = true
		}
	}

	byEvent, err := s.assignments.ListByEvents(eventIDs(events))
	if err != nil {
		return nil, err
	}

	var out []model.Event
	for _, e := range events {
		for _, a := range byEvent[e.ID] {
			if a.GroupID != nil && wanted[*a.GroupID] {
				out = append(out, e)
				break
			}
			if a.MusicianID != nil && members[*a.MusicianID] {
				out = append(out, e)
				break
			}
		}
	}
	return out, nil
}

func (s *Selector) narrowByOpenSlots(events []model.Event) ([]model.Event, error) {
	byEvent, err := s.assignments.ListByEvents(eventIDs(events))
	if err != nil {
		return nil, err
	}

	var out []model.Event
	for _, e := range events {
		for _, a := range byEvent[e.ID] {
			if a.Open() {
				out = append(out, e)
				break
			}
		}
	}
	return out, nil
}

func eventIDs(events []model.Event) []int64 {
	ids := make([]int64, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	return ids
}

func idSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
