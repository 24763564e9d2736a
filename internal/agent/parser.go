package agent

import (
	"regexp"
	"strings"
)

// Mention is a detected agent invocation inside a message.
type Mention struct {
	Agent    AgentType
	Prompt   string
	Original string
}

// mentionPattern matches a leading @agentName followed by the prompt.
// The name match is case insensitive, so "@EMAILAI do x" still triggers.
var mentionPattern = regexp.MustCompile(`(?i)^@(emailAi|searchAi)\s+(.+)`)

// ParseMention detects an agent mention at the start of a message.
// Mentions elsewhere in the text do not trigger an agent. Returns nil
// when the message is plain chat.
func ParseMention(message string) *Mention {
	m := mentionPattern.FindStringSubmatch(strings.TrimSpace(message))
	if m == nil {
		return nil
	}

	var agent AgentType
	switch strings.ToLower(m[1]) {
	case "emailai":
		agent = EmailAI
	case "searchai":
		agent = SearchAI
	default:
		return nil
	}

	return &Mention{
		Agent:    agent,
		Prompt:   strings.TrimSpace(m[2]),
		Original: message,
	}
}

// ExtractPrompt returns the agent type and prompt, or an empty type and
// the whole message when no agent is mentioned.
func ExtractPrompt(message string) (AgentType, string) {
	m := ParseMention(message)
	if m == nil {
		return "", message
	}
	return m.Agent, m.Prompt
}
