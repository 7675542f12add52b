package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/aihub/jobboard-ai/internal/errors"
	"github.com/aihub/jobboard-ai/internal/knowledge"
)

const feedbackSystemPrompt = "You are a feedback giver AI. Analyze the transcript of a interview meeting and ONLY give a score between 0 and 100. with 2 lines of feedback."

// InterviewFeedback is the scored review of an interview transcript.
type InterviewFeedback struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

type FeedbackService struct {
	generator knowledge.Generator
	model     string
	logger    *zap.Logger
}

func NewFeedbackService(generator knowledge.Generator, model string, logger *zap.Logger) *FeedbackService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedbackService{generator: generator, model: model, logger: logger.Named("feedback")}
}

// InterviewFeedback asks the model to score a transcript.
func (s *FeedbackService) InterviewFeedback(ctx context.Context, transcript string) (*InterviewFeedback, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, errors.NewEmptyInputError("transcript")
	}

	raw, err := s.generator.Complete(ctx, knowledge.CompletionRequest{
		Model:        s.model,
		SystemPrompt: feedbackSystemPrompt,
		UserPrompt:   fmt.Sprintf("transcript:\n%s", transcript),
	})
	if err != nil {
		s.logger.Warn("Interview feedback request failed", zap.Error(err))
		return nil, err
	}
	return parseFeedback(raw), nil
}

// parseFeedback takes the score from the first integer and keeps the lines
// after the one that carried it as feedback.
func parseFeedback(raw string) *InterviewFeedback {
	raw = strings.TrimSpace(raw)
	out := &InterviewFeedback{Score: ParseScore(raw), Feedback: raw}

	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		if firstInteger.MatchString(line) {
			rest := strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
			if rest != "" {
				out.Feedback = rest
			}
			break
		}
	}
	return out
}
