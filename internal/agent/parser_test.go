package agent

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseEmailAgentMention(t *testing.T) {
	msg := "@emailAi send an email to someone@example.com saying hi"
	m := ParseMention(msg)
	require.NotNil(t, m)
	assert.Equal(t, EmailAI, m.Agent)
	assert.Equal(t, "send an email to someone@example.com saying hi", m.Prompt)
	assert.Equal(t, msg, m.Original)
}

func TestParseSearchAgentMention(t *testing.T) {
	m := ParseMention("@searchAi find information about Go generics")
	require.NotNil(t, m)
	assert.Equal(t, SearchAI, m.Agent)
	assert.Equal(t, "find information about Go generics", m.Prompt)
}

func TestParseCaseInsensitive(t *testing.T) {
	for _, msg := range []string{
		"@EmailAi send a test email",
		"@EMAILAI send a test email",
		"@emailai send a test email",
	} {
		m := ParseMention(msg)
		require.NotNil(t, m, msg)
		assert.Equal(t, EmailAI, m.Agent)
		assert.Equal(t, "send a test email", m.Prompt)
	}
}

func TestParseNoAgentMention(t *testing.T) {
	assert.Nil(t, ParseMention("This is a regular message without any agent"))
	assert.Nil(t, ParseMention("@unknownAi do something"))
	assert.Nil(t, ParseMention("@emailAi"), "a mention with no prompt is not an invocation")
}

func TestParseMentionNotAtStart(t *testing.T) {
	assert.Nil(t, ParseMention("Hello @emailAi send an email"))
}

func TestParseExtraSpaces(t *testing.T) {
	m := ParseMention("@emailAi    send an email with extra spaces")
	require.NotNil(t, m)
	assert.Equal(t, "send an email with extra spaces", m.Prompt)
}

func TestParseLeadingWhitespace(t *testing.T) {
	m := ParseMention("   @searchAi search for news")
	require.NotNil(t, m)
	assert.Equal(t, SearchAI, m.Agent)
	assert.Equal(t, "search for news", m.Prompt)
}

func TestExtractPrompt(t *testing.T) {
	agent, prompt := ExtractPrompt("@searchAi search for AI news")
	assert.Equal(t, SearchAI, agent)
	assert.Equal(t, "search for AI news", prompt)

	agent, prompt = ExtractPrompt("Just a regular message")
	assert.Equal(t, AgentType(""), agent)
	assert.Equal(t, "Just a regular message", prompt)
}

func TestBotIDMapping(t *testing.T) {
	assert.Equal(t, EmailAIBotID, BotIDForAgent(EmailAI))
	assert.Equal(t, SearchAIBotID, BotIDForAgent(SearchAI))
	assert.Equal(t, GeneralAIBotID, BotIDForAgent(AgentType("whatever")))

	assert.Equal(t, "Email AI", BotName(EmailAIBotID))
	assert.Equal(t, "AI Assistant", BotName(uuid.New()))
}

func TestParsePromptRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		prompt := rapid.StringMatching(`[^\s@][^\n]{0,80}`).Draw(t, "prompt")
		prompt = strings.TrimSpace(prompt)
		if prompt == "" {
			t.Skip()
		}
		m := ParseMention("@emailAi " + prompt)
		if m == nil {
			t.Fatalf("mention with prompt %q not detected", prompt)
		}
		if m.Agent != EmailAI {
			t.Fatalf("wrong agent %q", m.Agent)
		}
		if m.Prompt != prompt {
			t.Fatalf("prompt mangled: %q != %q", m.Prompt, prompt)
		}
	})
}
