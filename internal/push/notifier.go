package push

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/cadenza-app/cadenza/internal/model"
	"github.com/cadenza-app/cadenza/internal/store"
)

// Notifier fans schedule changes out to musicians' devices. It is driven by
// post-commit hooks, never from inside a transaction, so a slow or dead push
// service cannot hold a write open.
type Notifier struct {
	service     *Service
	push        *store.PushStore
	assignments *store.AssignmentStore
	logger      *slog.Logger
}

func NewNotifier(service *Service, pushStore *store.PushStore, assignmentStore *store.AssignmentStore, logger *slog.Logger) *Notifier {
	return &Notifier{
		service:     service,
		push:        pushStore,
		assignments: assignmentStore,
		logger:      logger,
	}
}

// EventCancelled notifies every musician on the event's roster.
func (n *Notifier) EventCancelled(event *model.Event) {
	roster, err := n.assignments.ListByEvent(event.ID)
	if err != nil {
		n.logger.Error("push: load roster", "event_id", event.ID, "error", err)
		return
	}

	var musicianIDs []int64
	for _, a := range roster {
		if a.MusicianID != nil {
			musicianIDs = append(musicianIDs, *a.MusicianID)
		}
	}

	n.sendToMusicians(musicianIDs, Payload{
		Title: "Event Cancelled",
		Body:  fmt.Sprintf("%s on %s has been cancelled", event.Name, event.StartsAt.Format("Jan 2")),
		URL:   fmt.Sprintf("/events/%d", event.ID),
		Tag:   fmt.Sprintf("event-cancelled-%d", event.ID),
	})
}

// AssignmentOffered notifies the musician a slot was just assigned to.
func (n *Notifier) AssignmentOffered(a *model.Assignment, event *model.Event) {
	if a.MusicianID == nil {
		return
	}
	n.sendToMusicians([]int64{*a.MusicianID}, Payload{
		Title: "New Assignment",
		Body:  fmt.Sprintf("You're asked to play %s at %s on %s", a.RoleName, event.Name, event.StartsAt.Format("Jan 2")),
		URL:   fmt.Sprintf("/events/%d", event.ID),
		Tag:   fmt.Sprintf("assignment-%d", a.ID),
	})
}

func (n *Notifier) sendToMusicians(musicianIDs []int64, payload Payload) {
	if len(musicianIDs) == 0 {
		return
	}
	subs, err := n.push.ListByMusicians(musicianIDs)
	if err != nil {
		n.logger.Error("push: list subscriptions", "error", err)
		return
	}

	for _, sub := range subs {
		if err := n.service.Send(&sub, payload); err != nil {
			if errors.Is(err, ErrExpired) {
				// The push service told us this endpoint is gone for good.
				if err := n.push.DeleteByEndpoint(sub.Endpoint); err != nil {
					n.logger.Error("push: prune expired endpoint", "error", err)
				}
				continue
			}
			n.logger.Error("push: send", "endpoint", sub.Endpoint, "error", err)
		}
	}
}
