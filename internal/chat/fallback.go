package chat

import (
	"fmt"
	"strings"

	"persona-nft/backend/internal/models"
)

// Lines shown in place of a failed reply. %s is the character name.
var genericFallbacks = []string{
	"*%s pauses, lost in thought* Give me a moment and ask me again.",
	"Hmm... %s is not sure how to answer that just yet.",
	"*%s tilts their head* Could you say that once more?",
	"That is a good one. %s needs a moment to think it over.",
}

var curatedFallbacks = map[string][]string{
	"dog": {
		"*wags tail* Woof! I got distracted by a squirrel. Say that again?",
		"Arf! *sniffs around* I lost my train of thought!",
	},
	"luffy": {
		"Shishishi! I didn't catch that, I was thinking about meat! Say it again!",
		"Huh? Sorry, I got excited about our next adventure! What was that?",
	},
	"zoro": {
		"...I got lost. Again. Ask me once more.",
		"*rests a hand on the sword hilt* Say that again.",
	},
	"itachi": {
		"*closes eyes* Some answers reveal themselves only with patience. Ask again.",
		"Even I cannot see everything. Speak again, and I will listen.",
	},
}

// fallbackLines returns the character's own lines when curated, else lines naming the character
func fallbackLines(c models.Character) []string {
	if lines, ok := curatedFallbacks[strings.ToLower(strings.TrimSpace(c.Name))]; ok {
		return lines
	}
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = "The character"
	}
	lines := make([]string, len(genericFallbacks))
	for i, tmpl := range genericFallbacks {
		lines[i] = fmt.Sprintf(tmpl, name)
	}
	return lines
}
