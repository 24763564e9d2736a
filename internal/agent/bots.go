// Package agent bridges chat messages to AI agents: it detects agent
// mentions, runs the agent and posts the reply as a reserved bot account.
package agent

import (
	"github.com/google/uuid"
)

type AgentType string

const (
	EmailAI  AgentType = "emailAi"
	SearchAI AgentType = "searchAi"
	General  AgentType = "general"
)

// Reserved bot account IDs. These rows are seeded at startup and never
// collide with real accounts.
var (
	EmailAIBotID   = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	SearchAIBotID  = uuid.MustParse("00000000-0000-0000-0000-000000000002")
	GeneralAIBotID = uuid.MustParse("00000000-0000-0000-0000-000000000003")
)

var agentBotIDs = map[AgentType]uuid.UUID{
	EmailAI:  EmailAIBotID,
	SearchAI: SearchAIBotID,
	General:  GeneralAIBotID,
}

var botNames = map[uuid.UUID]string{
	EmailAIBotID:   "Email AI",
	SearchAIBotID:  "Search AI",
	GeneralAIBotID: "General AI",
}

// BotIDForAgent returns the bot account for an agent type, falling back
// to the general assistant for unknown types.
func BotIDForAgent(agentType AgentType) uuid.UUID {
	if id, ok := agentBotIDs[agentType]; ok {
		return id
	}
	return GeneralAIBotID
}

// BotName returns the display name for a bot account
func BotName(botID uuid.UUID) string {
	if name, ok := botNames[botID]; ok {
		return name
	}
	return "AI Assistant"
}

// IsBotID reports whether an ID belongs to a reserved bot account
func IsBotID(id uuid.UUID) bool {
	_, ok := botNames[id]
	return ok
}

// BotIDs returns every reserved bot account ID
func BotIDs() []uuid.UUID {
	return []uuid.UUID{EmailAIBotID, SearchAIBotID, GeneralAIBotID}
}
