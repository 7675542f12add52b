package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/aihub/jobboard-ai/internal/errors"
	"github.com/aihub/jobboard-ai/internal/knowledge"
)

const (
	fitScoreSystemPrompt = "You are a resume matcher AI. Analyze the resume and job description and return ONLY a fit score between 0 and 100. Do not provide any explanation, reasoning, or additional text."

	// LocalFitScore is returned in the local environment without calling out.
	LocalFitScore = 70
)

var firstInteger = regexp.MustCompile(`\d+`)

// FitScoreService scores a resume against a job description.
type FitScoreService struct {
	extractor knowledge.TextExtractor
	generator knowledge.Generator
	model     string
	local     bool
	logger    *zap.Logger
}

// NewFitScoreService returns a service that answers LocalFitScore when
// local is set.
func NewFitScoreService(extractor knowledge.TextExtractor, generator knowledge.Generator, model string, local bool, logger *zap.Logger) *FitScoreService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FitScoreService{
		extractor: extractor,
		generator: generator,
		model:     model,
		local:     local,
		logger:    logger.Named("fit_score"),
	}
}

// ComputeFitScore returns a score in [0, 100].
func (s *FitScoreService) ComputeFitScore(ctx context.Context, resumeRef, jobDescription string) (int, error) {
	if strings.TrimSpace(resumeRef) == "" {
		return 0, errors.NewEmptyInputError("resumeUrl")
	}
	if strings.TrimSpace(jobDescription) == "" {
		return 0, errors.NewEmptyInputError("jobDescription")
	}
	if s.local {
		return LocalFitScore, nil
	}

	resumeText, err := s.extractor.ExtractText(ctx, resumeRef)
	if err != nil {
		s.logger.Warn("Resume extraction failed", zap.String("resume", resumeRef), zap.Error(err))
		return 0, err
	}

	raw, err := s.generator.Complete(ctx, knowledge.CompletionRequest{
		Model:        s.model,
		SystemPrompt: fitScoreSystemPrompt,
		UserPrompt: fmt.Sprintf("Resume:\n%s\n\nJob Description:\n%s\n\nOnly return a number between 0 and 100.",
			resumeText, jobDescription),
	})
	if err != nil {
		s.logger.Warn("Fit score request failed", zap.Error(err))
		return 0, err
	}

	score := ParseScore(raw)
	s.logger.Debug("Fit score computed", zap.Int("score", score), zap.String("raw", raw))
	return score, nil
}

// ParseScore reads the first integer in a model reply and clamps it to
// [0, 100]. A reply without digits scores 0.
func ParseScore(raw string) int {
	token := firstInteger.FindString(raw)
	if token == "" {
		return 0
	}
	n, err := strconv.Atoi(token)
	if err != nil {
		// too many digits for an int
		return 100
	}
	switch {
	case n < 0:
		return 0
	case n > 100:
		return 100
	}
	return n
}
