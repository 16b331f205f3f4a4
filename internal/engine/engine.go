// Package engine owns the conversation and entitlement state transitions:
// turn submission, the career question index, and the ownership rules around
// threads. Transport, billing event intake, and the LLM itself live behind
// collaborator interfaces.
package engine

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/t2tlabs/t2t-backend/internal/models"
	"github.com/t2tlabs/t2t-backend/internal/prompts"
	"github.com/t2tlabs/t2t-backend/internal/provider"
	"github.com/t2tlabs/t2t-backend/internal/storage"
	"go.uber.org/zap"
)

const (
	// historyLimit caps how much of a thread is replayed to the provider.
	historyLimit = 20
	// maxQuestions is the length of the career interview arc.
	maxQuestions = 8
	// titleLimit bounds thread titles derived from the first message.
	titleLimit = 60
	// renameLimit bounds caller-supplied titles.
	renameLimit = 200
)

type Engine struct {
	store      storage.Storage
	provider   provider.CompletionProvider
	upgradeURL string
	logger     *zap.Logger
}

func New(store storage.Storage, completions provider.CompletionProvider, upgradeURL string, logger *zap.Logger) *Engine {
	return &Engine{
		store:      store,
		provider:   completions,
		upgradeURL: upgradeURL,
		logger:     logger,
	}
}

// TurnResult is what a successful SubmitTurn returns. QuestionIndex is only
// meaningful for career-mode turns; callers should consult Thread.Mode.
type TurnResult struct {
	Thread        *models.Thread
	AssistantText string
	QuestionIndex int
}

// SubmitTurn runs one conversation turn: entitlement gate, thread
// resolution, user commit, provider call, assistant commit. threadID may be
// empty to start a new thread. A provider failure leaves the user message
// committed and returns a ProviderError.
func (e *Engine) SubmitTurn(ctx context.Context, accountID, threadID string, mode models.Mode, userText string) (*TurnResult, error) {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return nil, &ValidationError{Reason: "no message provided"}
	}

	account, err := e.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	// The gate runs before any write so a rejected request leaves no
	// partial state behind, even when threadID was supplied.
	if mode == models.ModeCareer && account.Tier == models.TierNone {
		return nil, &EntitlementError{UpgradeURL: e.upgradeURL}
	}

	var thread *models.Thread
	if threadID != "" {
		thread, err = e.store.GetThread(ctx, accountID, threadID)
		if err != nil {
			return nil, err
		}
	} else {
		thread = &models.Thread{
			AccountID: accountID,
			Title:     makeThreadTitle(userText),
			Mode:      mode,
		}
		if err := e.store.CreateThread(ctx, thread); err != nil {
			return nil, err
		}
	}

	userMsg := &models.Message{
		ThreadID: thread.ID,
		Role:     models.RoleUser,
		Content:  userText,
		Mode:     mode,
	}
	if err := e.store.AppendMessage(ctx, userMsg); err != nil {
		return nil, err
	}
	thread.UpdatedAt = userMsg.CreatedAt

	history, err := e.store.RecentMessages(ctx, thread.ID, historyLimit)
	if err != nil {
		return nil, err
	}
	past := make([]provider.ChatMessage, 0, len(history))
	for _, m := range history {
		past = append(past, provider.ChatMessage{Role: m.Role, Content: m.Content})
	}

	assistantText, err := e.provider.Complete(ctx, prompts.Instructions(mode), past, provider.Options{
		MaxTokens:    prompts.MaxTokens(mode),
		WebAugmented: prompts.WebAugmented(mode),
	})
	if err != nil {
		// The user turn stays committed so the input is not lost; the
		// orphan is included in history on resubmission.
		e.logger.Warn("Turn aborted on provider failure",
			zap.Error(err),
			zap.String("thread_id", thread.ID),
			zap.String("mode", string(mode)))
		return nil, &ProviderError{Err: err}
	}

	asstMsg := &models.Message{
		ThreadID: thread.ID,
		Role:     models.RoleAssistant,
		Content:  assistantText,
		Mode:     mode,
	}
	if err := e.store.AppendMessage(ctx, asstMsg); err != nil {
		return nil, err
	}
	thread.UpdatedAt = asstMsg.CreatedAt

	result := &TurnResult{
		Thread:        thread,
		AssistantText: assistantText,
	}
	if mode == models.ModeCareer {
		idx, err := e.QuestionIndex(ctx, thread.ID)
		if err != nil {
			return nil, err
		}
		result.QuestionIndex = idx
	}
	return result, nil
}

// QuestionIndex derives the current career interview position from the count
// of committed user messages, clamped to the 8-step arc. It is recomputed on
// every read and never stored, so it cannot drift from the actual history.
func (e *Engine) QuestionIndex(ctx context.Context, threadID string) (int, error) {
	count, err := e.store.CountUserMessages(ctx, threadID)
	if err != nil {
		return 0, err
	}
	if count > maxQuestions {
		return maxQuestions, nil
	}
	return count, nil
}

// ListThreads returns the account's threads, most recently active first.
func (e *Engine) ListThreads(ctx context.Context, accountID string) ([]*models.Thread, error) {
	return e.store.ListThreads(ctx, accountID)
}

// GetThread returns one thread with its full ordered history. A thread owned
// by another account is indistinguishable from a missing one.
func (e *Engine) GetThread(ctx context.Context, accountID, threadID string) (*models.Thread, []*models.Message, error) {
	thread, err := e.store.GetThread(ctx, accountID, threadID)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := e.store.RecentMessages(ctx, threadID, 0)
	if err != nil {
		return nil, nil, err
	}
	return thread, msgs, nil
}

// RenameThread updates a thread's display title.
func (e *Engine) RenameThread(ctx context.Context, accountID, threadID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return &ValidationError{Reason: "title is required"}
	}
	if utf8.RuneCountInString(title) > renameLimit {
		title = string([]rune(title)[:renameLimit])
	}
	return e.store.RenameThread(ctx, accountID, threadID, title)
}

// DeleteThread removes a thread and its messages.
func (e *Engine) DeleteThread(ctx context.Context, accountID, threadID string) error {
	return e.store.DeleteThread(ctx, accountID, threadID)
}

// makeThreadTitle derives a display title from the first user message.
func makeThreadTitle(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) > titleLimit {
		return string(runes[:titleLimit]) + "…"
	}
	return string(runes)
}
