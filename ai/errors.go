package ai

import (
	"errors"
	"strings"
)

var (
	// ErrMissingAPIKey means no model API key is configured
	ErrMissingAPIKey = errors.New("missing generative AI api key")
	// ErrEmptyResponse means the model answered without text
	ErrEmptyResponse = errors.New("empty model response")
	// ErrBlocked means the prompt or the answer was stopped by safety filters
	ErrBlocked = errors.New("content blocked by safety filters")
	// ErrCharacterNotFound means there is no resolved character to speak as
	ErrCharacterNotFound = errors.New("character not found")
)

// Category is the user-facing class of a generation failure
type Category string

const (
	CategoryMissingAPIKey     Category = "MISSING_API_KEY"
	CategoryInvalidAPIKey     Category = "INVALID_API_KEY"
	CategoryQuotaExceeded     Category = "QUOTA_EXCEEDED"
	CategorySafetyFilter      Category = "SAFETY_FILTER"
	CategoryGenericError      Category = "GENERIC_ERROR"
	CategoryEmptyResponse     Category = "EMPTY_RESPONSE"
	CategoryCharacterNotFound Category = "CHARACTER_NOT_FOUND"
)

var messages = map[Category]string{
	CategoryMissingAPIKey:     "[AI configuration error: Missing Gemini API Key. Please set GEMINI_API_KEY in your environment]",
	CategoryInvalidAPIKey:     "[AI Error: Invalid API key. Please check your Gemini API key.]",
	CategoryQuotaExceeded:     "[AI Error: API quota exceeded. Please try again later.]",
	CategorySafetyFilter:      "[AI Error: Content blocked by safety filters. Please rephrase your message.]",
	CategoryGenericError:      "[AI response error: Please try again or check your API configuration.]",
	CategoryEmptyResponse:     "[AI response was empty]",
	CategoryCharacterNotFound: "[Character not found]",
}

// Message returns the text shown to the user for c
func (c Category) Message() string {
	if m, ok := messages[c]; ok {
		return m
	}
	return messages[CategoryGenericError]
}

// Classify maps a generation error onto a Category
func Classify(err error) Category {
	switch {
	case errors.Is(err, ErrMissingAPIKey):
		return CategoryMissingAPIKey
	case errors.Is(err, ErrEmptyResponse):
		return CategoryEmptyResponse
	case errors.Is(err, ErrBlocked):
		return CategorySafetyFilter
	case errors.Is(err, ErrCharacterNotFound):
		return CategoryCharacterNotFound
	}

	msg := err.Error()
	upper := strings.ToUpper(msg)
	switch {
	case strings.Contains(upper, "API_KEY_INVALID"), strings.Contains(msg, "API key not valid"):
		return CategoryInvalidAPIKey
	case strings.Contains(upper, "QUOTA"), strings.Contains(upper, "RESOURCE_EXHAUSTED"), strings.Contains(msg, "429"):
		return CategoryQuotaExceeded
	case strings.Contains(upper, "SAFETY"), strings.Contains(strings.ToLower(msg), "blocked"):
		return CategorySafetyFilter
	default:
		return CategoryGenericError
	}
}
