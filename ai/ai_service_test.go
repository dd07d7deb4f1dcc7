package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"persona-nft/backend/pkg/logger"
)

type mockModels struct {
	mock.Mock
}

func (m *mockModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	args := m.Called(ctx, model, contents, config)
	res, _ := args.Get(0).(*genai.GenerateContentResponse)
	return res, args.Error(1)
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: genai.NewContentFromText(text, genai.RoleModel),
		}},
	}
}

func TestGenerateReply(t *testing.T) {
	models := &mockModels{}
	g := newGenerator(models, withDefaults(Config{}), logger.Discard())

	models.On("GenerateContent", mock.Anything, "gemini-1.5-flash", mock.MatchedBy(func(contents []*genai.Content) bool {
		return len(contents) == 3 &&
			contents[0].Role == string(genai.RoleModel) &&
			contents[1].Role == string(genai.RoleUser) &&
			contents[2].Parts[0].Text == "Tell me about magic"
	}), mock.MatchedBy(func(cfg *genai.GenerateContentConfig) bool {
		return cfg.SystemInstruction != nil &&
			cfg.SystemInstruction.Parts[0].Text == "You are Aria" &&
			*cfg.Temperature == float32(0.9) &&
			cfg.MaxOutputTokens == 200
	})).Return(textResponse("  *eyes glow* Magic is memory.  "), nil)

	reply, err := g.GenerateReply(context.Background(), Request{
		SystemPrompt: "You are Aria",
		History: []Turn{
			{Speaker: SpeakerCharacter, Text: "Greetings, traveler."},
			{Speaker: SpeakerUser, Text: "Hello"},
		},
		Message: "Tell me about magic",
	})
	require.NoError(t, err)
	assert.Equal(t, "*eyes glow* Magic is memory.", reply)
	models.AssertExpectations(t)
}

func TestGenerateReply_Failures(t *testing.T) {
	tests := []struct {
		name string
		res  *genai.GenerateContentResponse
		err  error
		want Category
	}{
		{
			name: "blocked prompt",
			res:  &genai.GenerateContentResponse{PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety}},
			want: CategorySafetyFilter,
		},
		{
			name: "safety finish",
			res:  &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}}},
			want: CategorySafetyFilter,
		},
		{
			name: "no candidates",
			res:  &genai.GenerateContentResponse{},
			want: CategoryEmptyResponse,
		},
		{
			name: "blank text",
			res:  textResponse("   "),
			want: CategoryEmptyResponse,
		},
		{
			name: "quota",
			err:  errors.New("Error 429, Message: Resource has been exhausted, Status: RESOURCE_EXHAUSTED"),
			want: CategoryQuotaExceeded,
		},
		{
			name: "invalid key",
			err:  errors.New("Error 400, Message: API key not valid. Please pass a valid API key., Status: INVALID_ARGUMENT"),
			want: CategoryInvalidAPIKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			models := &mockModels{}
			models.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(tt.res, tt.err)
			g := newGenerator(models, withDefaults(Config{}), logger.Discard())

			_, err := g.GenerateReply(context.Background(), Request{Message: "hi"})
			require.Error(t, err)
			assert.Equal(t, tt.want, Classify(err))
		})
	}
}

func TestGenerateReply_MissingKey(t *testing.T) {
	g, err := NewGeminiGenerator(context.Background(), Config{}, logger.Discard())
	require.NoError(t, err)

	_, err = g.GenerateReply(context.Background(), Request{Message: "hi"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.Equal(t, CategoryMissingAPIKey, Classify(err))
}

func TestClassify(t *testing.T) {
	cases := map[string]Category{
		"googleapi: Error 400: API_KEY_INVALID":              CategoryInvalidAPIKey,
		"API key not valid. Please pass a valid API key.":    CategoryInvalidAPIKey,
		"QUOTA_EXCEEDED for project":                         CategoryQuotaExceeded,
		"rpc error: code = ResourceExhausted desc = quota":   CategoryQuotaExceeded,
		"status 429 Too Many Requests":                       CategoryQuotaExceeded,
		"response blocked due to SAFETY":                     CategorySafetyFilter,
		"candidate was blocked":                              CategorySafetyFilter,
		"dial tcp: lookup generativelanguage.googleapis.com": CategoryGenericError,
	}
	for msg, want := range cases {
		assert.Equal(t, want, Classify(errors.New(msg)), msg)
	}

	assert.Equal(t, CategoryEmptyResponse, Classify(ErrEmptyResponse))
	assert.Equal(t, CategorySafetyFilter, Classify(ErrBlocked))
	assert.Equal(t, CategoryCharacterNotFound, Classify(fmt.Errorf("open session: %w", ErrCharacterNotFound)))
}

func TestCategoryMessage(t *testing.T) {
	assert.Equal(t, "[AI Error: API quota exceeded. Please try again later.]", CategoryQuotaExceeded.Message())
	assert.Equal(t, "[AI response was empty]", CategoryEmptyResponse.Message())
	assert.Equal(t, "[Character not found]", CategoryCharacterNotFound.Message())
	assert.Equal(t, CategoryGenericError.Message(), Category("nope").Message())
}
