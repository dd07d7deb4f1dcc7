package ai

import "context"

// Speaker identifies who said a turn
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerCharacter Speaker = "character"
)

// Turn is one prior message of the conversation
type Turn struct {
	Speaker Speaker
	Text    string
}

// Request is everything a generator needs for one reply
type Request struct {
	// SystemPrompt carries the persona instructions
	SystemPrompt string
	// History is the conversation so far, oldest first, excluding Message
	History []Turn
	// Message is the user's latest message
	Message string
}

// Generator produces a character reply
type Generator interface {
	GenerateReply(ctx context.Context, req Request) (string, error)
}
