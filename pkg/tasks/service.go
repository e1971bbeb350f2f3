package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jmgilman/go/errors"
	"go.uber.org/zap"

	"github.com/pario-ai/fcagent/pkg/llm"
	"github.com/pario-ai/fcagent/pkg/models"
)

// ResponseCache parks oversized completions. Implemented by memory.Cache.
type ResponseCache interface {
	CacheResponse(response string, meta models.ResponseMeta, ttl time.Duration) models.ResponseDescriptor
	Settings() models.CacheSettings
}

// Service creates, runs and reads tasks.
type Service struct {
	store *Store
	llm   llm.Completer
	cache ResponseCache
	log   *zap.Logger
}

// NewService wires a Service. A nil logger disables logging.
func NewService(store *Store, completer llm.Completer, cache ResponseCache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, llm: completer, cache: cache, log: logger}
}

// Execute records a task, runs it and returns either the inline completion or
// a cache descriptor when the text exceeds the large-response threshold.
func (s *Service) Execute(ctx context.Context, userID, taskType string, data map[string]any) (models.TaskResult, error) {
	taskID, err := s.store.Create(ctx, userID, taskType, data)
	if err != nil {
		return models.TaskResult{}, err
	}
	log := s.log.With(zap.Int64("task_id", taskID), zap.String("task_type", taskType))
	log.Info("executing task")

	result, err := s.run(ctx, taskID, taskType, data)
	if err != nil {
		log.Error("task failed", zap.Error(err))
		failure := map[string]any{"error": errors.ToJSON(err)}
		if uerr := s.store.UpdateStatus(context.WithoutCancel(ctx), taskID, models.TaskError, failure); uerr != nil {
			log.Error("record task failure", zap.Error(uerr))
		}
		return models.TaskResult{}, err
	}
	return result, nil
}

func (s *Service) run(ctx context.Context, taskID int64, taskType string, data map[string]any) (models.TaskResult, error) {
	prompt, err := buildPrompt(taskType, data)
	if err != nil {
		return models.TaskResult{}, errors.WithContextMap(err, map[string]interface{}{
			"taskId":   taskID,
			"taskType": taskType,
		})
	}

	completion, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		return models.TaskResult{}, err
	}

	if err := s.store.UpdateStatus(ctx, taskID, models.TaskCompleted, completion); err != nil {
		return models.TaskResult{}, err
	}

	out := models.TaskResult{TaskID: taskID, Status: models.TaskCompleted}
	if utf8.RuneCountInString(completion.Text) <= s.cache.Settings().LargeResponseThreshold {
		out.Result = &completion
		return out, nil
	}

	desc := s.cache.CacheResponse(completion.Text, models.ResponseMeta{
		TaskID:   taskID,
		TaskType: taskType,
		Source:   "executeTask",
	}, 0)
	s.log.Info("response cached",
		zap.Int64("task_id", taskID),
		zap.String("response_id", desc.ResponseID),
		zap.Time("expires_at", desc.ExpiresAt),
	)
	out.ResponseID = desc.ResponseID
	out.Preview = desc.Preview
	out.FullResponseAvailable = desc.FullResponseAvailable
	out.ExpiresAt = &desc.ExpiresAt
	return out, nil
}

// List returns a page of tasks and the total count.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]models.Task, int, error) {
	return s.store.List(ctx, userID, limit, offset)
}

// Get returns one task.
func (s *Service) Get(ctx context.Context, id int64, userID string) (models.Task, error) {
	return s.store.Get(ctx, id, userID)
}

const (
	emailSystemPrompt = `You are a professional assistant who summarizes emails efficiently.
Group related messages, highlight decisions, deadlines and requested actions, and keep the summary short.`
	teamsSystemPrompt = `You are a professional assistant who summarizes Microsoft Teams conversations.
Identify the participants, the topics discussed, the decisions taken and any follow-up actions.`
	draftSystemPrompt = `You are a professional assistant who writes clear business emails.
Follow the instructions, use an appropriate tone and return only the email body.`
)

func buildPrompt(taskType string, data map[string]any) (models.Prompt, error) {
	switch taskType {
	case models.TaskProcessUserInput:
		input, ok := data["input"].(string)
		if !ok || strings.TrimSpace(input) == "" {
			return models.Prompt{}, errors.New(errors.CodeInvalidInput, "missing input for user message")
		}
		return models.Prompt{User: input, MaxTokens: 1024, Temperature: temperature(0.7)}, nil

	case models.TaskGmailSummary:
		emails, ok := data["emails"]
		if !ok || emails == nil {
			return models.Prompt{}, errors.New(errors.CodeInvalidInput, "missing emails to summarize")
		}
		user := "Summarize these emails:\n" + render(emails)
		if q, _ := data["searchQuery"].(string); q != "" {
			user = fmt.Sprintf("Summarize these emails matching the search %q:\n%s", q, render(emails))
		}
		return models.Prompt{System: emailSystemPrompt, User: user, MaxTokens: 1500, Temperature: temperature(0.3)}, nil

	case models.TaskTeamsSummary:
		messages, ok := data["messages"]
		if !ok || messages == nil {
			return models.Prompt{}, errors.New(errors.CodeInvalidInput, "missing messages to summarize")
		}
		return models.Prompt{
			System:      teamsSystemPrompt,
			User:        "Summarize this conversation:\n" + render(messages),
			MaxTokens:   1500,
			Temperature: temperature(0.3),
		}, nil

	case models.TaskDraftEmail:
		instructions, ok := data["instructions"].(string)
		if !ok || strings.TrimSpace(instructions) == "" {
			return models.Prompt{}, errors.New(errors.CodeInvalidInput, "missing drafting instructions")
		}
		return models.Prompt{System: draftSystemPrompt, User: instructions, MaxTokens: 1500, Temperature: temperature(0.5)}, nil
	}

	return models.Prompt{}, errors.Newf(errors.CodeInvalidInput, "task type not supported: %s", taskType)
}

// render turns structured task input into prompt text.
func render(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func temperature(t float64) *float64 { return &t }
