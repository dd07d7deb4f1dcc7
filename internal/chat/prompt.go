package chat

import (
	"fmt"
	"strings"

	"persona-nft/backend/internal/models"
)

const requirements = `Key Requirements:
1. ALWAYS stay in character.
2. Use speech patterns and vocabulary that match your character's personality.
3. Reference your character's background and experiences in your responses.
4. Show emotional responses that align with your personality traits.
5. Never break character or acknowledge that you are an AI.
6. Keep responses concise but meaningful (1-3 sentences).

Current conversation context: The user is interacting with you in a virtual world and expects responses in the voice and persona of this character.`

// BuildPrompt renders the persona system prompt for a character.
// A style from styles is added when one is keyed by the lower-cased name.
func BuildPrompt(c models.Character, styles Styles) string {
	var b strings.Builder
	b.WriteString("You are roleplaying as a character with the following details:\n")
	fmt.Fprintf(&b, "Name: %s\n", c.Name)
	fmt.Fprintf(&b, "Description: %s\n", c.Description)
	fmt.Fprintf(&b, "Personality: %s\n\n", c.Personality)

	if style, ok := styles.Lookup(c.Name); ok {
		fmt.Fprintf(&b, "Special instructions for this character: %s\n", style)
	}

	b.WriteString(requirements)
	return b.String()
}
