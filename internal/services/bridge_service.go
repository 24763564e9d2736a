package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/armada-chat/armada/internal/agent"
	"github.com/armada-chat/armada/internal/ws"
	"github.com/armada-chat/armada/middleware/log"
)

const agentTimeout = 60 * time.Second

// AgentBridge watches posted messages for agent mentions and posts the
// agent's reply as the corresponding bot account. The whole exchange is
// detached from the triggering request.
type AgentBridge struct {
	messages *MessageService
	chat     *ChatService
	runner   agent.Runner
	pool     Submitter
	hub      *ws.Hub
	logger   *logger.Logger
}

func NewAgentBridge(
	messages *MessageService,
	chat *ChatService,
	runner agent.Runner,
	pool Submitter,
	hub *ws.Hub,
	log *logger.Logger,
) *AgentBridge {
	return &AgentBridge{
		messages: messages,
		chat:     chat,
		runner:   runner,
		pool:     pool,
		hub:      hub,
		logger:   log,
	}
}

// MaybeInvoke inspects a posted message and, when it opens with an agent
// mention, schedules the agent run. Non-mention messages cost one parse.
func (b *AgentBridge) MaybeInvoke(roomID, messageID, senderID uuid.UUID, content string) {
	mention := agent.ParseMention(content)
	if mention == nil {
		return
	}
	b.pool.Submit(func() {
		b.invoke(roomID, messageID, senderID, mention)
	})
}

func (b *AgentBridge) invoke(roomID, messageID, senderID uuid.UUID, mention *agent.Mention) {
	ctx, cancel := context.WithTimeout(context.Background(), agentTimeout)
	defer cancel()

	botID := agent.BotIDForAgent(mention.Agent)
	botName := agent.BotName(botID)

	b.chat.BroadcastAgentTyping(roomID, botID, botName, true)
	defer b.chat.BroadcastAgentTyping(roomID, botID, botName, false)

	reply, err := b.runner.Run(ctx, &agent.Request{
		Agent:  mention.Agent,
		Prompt: mention.Prompt,
		RoomID: roomID,
		UserID: senderID,
	})
	if err != nil {
		b.logger.Error("agent run failed",
			zap.String("agent", string(mention.Agent)),
			zap.String("room_id", roomID.String()),
			zap.Error(err),
		)
		b.hub.SendToRoom(roomID, ws.Encode(ws.EventAIError, map[string]any{
			"room_id":    roomID,
			"message_id": messageID,
			"agent":      mention.Agent,
			"error":      "agent failed to respond",
		}))
		return
	}

	if _, err := b.messages.Post(ctx, botID, &PostRequest{
		RoomID:    roomID,
		Content:   reply,
		ReplyToID: &messageID,
	}); err != nil {
		b.logger.Error("failed to post agent reply",
			zap.String("agent", string(mention.Agent)),
			zap.String("room_id", roomID.String()),
			zap.Error(err),
		)
	}
}
