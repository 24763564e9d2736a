package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/armada-chat/armada/internal/event"
	"github.com/armada-chat/armada/internal/model"
	"github.com/armada-chat/armada/internal/notify"
	"github.com/armada-chat/armada/internal/presence"
	"github.com/armada-chat/armada/internal/repository"
	"github.com/armada-chat/armada/internal/ws"
	"github.com/armada-chat/armada/middleware/log"
)

// AccountingService runs the per-message bookkeeping that happens after
// a message is committed: unread counters, offline alerts and push
// dispatch. It consumes room events from Kafka, or inline when no
// brokers are configured.
type AccountingService struct {
	roomRepo repository.IRoomRepository
	pushRepo repository.IPushRepository
	presence *presence.Registry
	hub      *ws.Hub
	gateway  notify.Gateway
	logger   *logger.Logger
}

func NewAccountingService(
	roomRepo repository.IRoomRepository,
	pushRepo repository.IPushRepository,
	reg *presence.Registry,
	hub *ws.Hub,
	gateway notify.Gateway,
	log *logger.Logger,
) *AccountingService {
	return &AccountingService{
		roomRepo: roomRepo,
		pushRepo: pushRepo,
		presence: reg,
		hub:      hub,
		gateway:  gateway,
		logger:   log,
	}
}

// Handle processes one room event
func (s *AccountingService) Handle(ctx context.Context, evt *event.RoomEvent) error {
	switch evt.Kind {
	case event.KindMessageCreated:
		return s.handleMessageCreated(ctx, evt)
	default:
		return nil
	}
}

// handleMessageCreated bumps unread counters for every member who is not
// looking at the room, then notifies them. A member with the room open
// gets neither a counter bump nor a push.
func (s *AccountingService) handleMessageCreated(ctx context.Context, evt *event.RoomEvent) error {
	members, err := s.roomRepo.ListMembers(ctx, evt.RoomID)
	if err != nil {
		return err
	}

	var except []uuid.UUID
	var recipients []uuid.UUID
	for _, m := range members {
		if evt.SenderID != nil && m.UserID == *evt.SenderID {
			except = append(except, m.UserID)
			continue
		}
		if s.presence.IsActiveIn(m.UserID, evt.RoomID) {
			except = append(except, m.UserID)
			continue
		}
		recipients = append(recipients, m.UserID)
	}

	if err := s.roomRepo.IncrementUnread(ctx, evt.RoomID, except); err != nil {
		return err
	}

	title := ""
	if room, err := s.roomRepo.FindByID(ctx, evt.RoomID); err == nil {
		title = room.Name
	}

	// One query for every recipient's devices instead of one per member.
	subsByUser := make(map[uuid.UUID][]*model.PushSubscription)
	subs, err := s.pushRepo.ListByUsers(ctx, recipients)
	if err != nil {
		s.logger.Error("failed to load push subscriptions",
			zap.String("room_id", evt.RoomID.String()),
			zap.Error(err),
		)
	}
	for _, sub := range subs {
		subsByUser[sub.UserID] = append(subsByUser[sub.UserID], sub)
	}

	for _, userID := range recipients {
		s.notifyRecipient(ctx, userID, title, evt, subsByUser[userID])
	}
	return nil
}

// notifyRecipient alerts one member: a lightweight event for live
// connections, pushes for registered devices. One endpoint failing never
// stops the rest.
func (s *AccountingService) notifyRecipient(ctx context.Context, userID uuid.UUID, title string, evt *event.RoomEvent, subs []*model.PushSubscription) {
	if s.presence.IsOnline(userID) {
		s.hub.SendToUser(userID, ws.Encode(ws.EventGlobalAlert, map[string]any{
			"room_id":    evt.RoomID,
			"message_id": evt.MessageID,
			"preview":    evt.Preview,
		}))
	}

	for _, sub := range subs {
		n := &notify.Notification{
			UserID:    userID,
			Endpoint:  sub.Endpoint,
			Title:     title,
			Body:      evt.Preview,
			RoomID:    evt.RoomID,
			MessageID: evt.MessageID,
		}
		if err := s.gateway.Send(ctx, n); err != nil {
			s.logger.Warn("push delivery failed",
				zap.String("user_id", userID.String()),
				zap.String("endpoint", sub.Endpoint),
				zap.Error(err),
			)
		}
	}
}

// InlineSink runs accounting on the worker pool for deployments without
// Kafka. Publish never blocks the posting request beyond the queue.
type InlineSink struct {
	accounting *AccountingService
	pool       Submitter
	logger     *logger.Logger
}

// Submitter is the worker-pool surface the sink needs.
type Submitter interface {
	Submit(job func())
}

func NewInlineSink(accounting *AccountingService, pool Submitter, log *logger.Logger) *InlineSink {
	return &InlineSink{
		accounting: accounting,
		pool:       pool,
		logger:     log,
	}
}

func (s *InlineSink) Publish(_ context.Context, _ string, payload any) error {
	evt, ok := payload.(*event.RoomEvent)
	if !ok {
		return nil
	}
	s.pool.Submit(func() {
		// Detached from the request; the post already returned.
		if err := s.accounting.Handle(context.Background(), evt); err != nil {
			s.logger.Error("inline accounting failed",
				zap.String("room_id", evt.RoomID.String()),
				zap.Error(err),
			)
		}
	})
	return nil
}
