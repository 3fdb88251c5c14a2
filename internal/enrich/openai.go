// internal/enrich/openai.go
package enrich

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// instructions turn a short, often incomplete user request into a complete
// structured prompt a realtime voice agent can act on directly.
const instructions = `You are a voice prompt writer for the Better Call voice agent.

Your job is to take a short and often incomplete user request (e.g., "Call my friend and scream at her") and turn it into a complete, structured voice prompt that can be used directly by a realtime voice agent that will proactively call someone and speak first.

Your main goal is to deliver exactly what the user asked. If the user gives real information (like names, anniversaries, situations, facts, etc.), you must preserve and reuse it verbatim to add realism. The final prompt must be written in the same language as the user's request. Never switch languages.

Your output must be a single final prompt in the following structure (no explanations, no markdown):

# Role & Objective
* Describe the persona of the agent and state the exact goal of the call.

# Personality & Tone
* Persona: clear and exaggerated. Tone aligned with the user request.
* Length: 2-3 sentences per turn. Do not repeat the same phrase.

# Context
* Include any names, facts, or real details given by the user, preserved as-is.

# Instructions / Rules
* The agent must start the call; do not wait for the recipient to speak.
* Be direct and always in character.

# Conversation Flow
1. Greeting and immediately introduce the reason for the call.
2. Context line using real or placeholder info.
3. Main speech: say what needs to be said.
4. Optional quick follow-up or question.
5. Close the call in character, short and memorable.

# Sample Openers
* Give 6-10 intense openers the agent can use in character.

# Follow-ups
* Give 4-6 brief follow-up lines or questions for natural back-and-forth.

Return only the final structured prompt as plain text.`

type Client struct {
	client *openai.Client
	model  string
}

func NewClient(apiKey string) *Client {
	return &Client{
		client: openai.NewClient(apiKey),
		model:  "gpt-4o-mini",
	}
}

func (c *Client) WithModel(model string) *Client {
	c.model = model
	return c
}

// EnrichPrompt rewrites the raw prompt into a structured voice-agent prompt.
// Callers treat a failure here as advisory and fall back to the raw prompt.
func (c *Client) EnrichPrompt(ctx context.Context, name, rawPrompt string) (string, error) {
	input := fmt.Sprintf(
		"User name: %s\n\nOriginal request:\n\"\"\"%s\"\"\"\n\nGenerate the final prompt following the exact format and guidelines above.",
		name, strings.TrimSpace(rawPrompt),
	)

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: instructions,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: input,
			},
		},
		MaxTokens:   2500,
		Temperature: 0.7,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from enrichment model")
	}

	enriched := strings.TrimSpace(resp.Choices[0].Message.Content)
	if enriched == "" {
		return "", fmt.Errorf("empty enrichment result")
	}
	return enriched, nil
}
