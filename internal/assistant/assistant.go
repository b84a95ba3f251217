// Package assistant runs the chat log behind the dashboard's financial assistant.
package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jonathan/yecs/internal/observability"
	"github.com/jonathan/yecs/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Fixed assistant messages.
const (
	Greeting = "Hello! I'm your YECS financial assistant. Ask me anything about your score, loan options, or how to improve your credit profile."
	Apology  = "I'm sorry, I'm having trouble connecting right now. Please try again in a moment."
)

var (
	// ErrEmptyMessage is returned for blank input. Nothing is appended.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrBusy is returned while a previous message is awaiting its reply.
	ErrBusy = errors.New("a reply is already pending")
)

// ChatModel produces a reply to one message. gateway.Gateway satisfies it.
type ChatModel interface {
	Chat(ctx context.Context, profile types.ApplicantProfile, score *types.ScoreResult, history []types.ChatMessage, message string) (string, error)
}

// ContextProvider supplies the profile and score a reply should be based on.
type ContextProvider interface {
	ChatContext() (types.ApplicantProfile, *types.ScoreResult)
}

// Assistant is an append-only chat log with at most one outstanding request.
type Assistant struct {
	model  ChatModel
	source ContextProvider
	logger *zap.Logger

	// pending admits one Send at a time; others fail fast with ErrBusy
	pending *semaphore.Weighted

	mu       sync.RWMutex
	messages []types.ChatMessage
	thinking bool
}

// New creates an Assistant whose log starts with the greeting. model may be
// nil, in which case every reply is the apology.
func New(model ChatModel, source ContextProvider, logger *zap.Logger) *Assistant {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assistant{
		model:    model,
		source:   source,
		logger:   logger.Named("assistant"),
		pending:  semaphore.NewWeighted(1),
		messages: []types.ChatMessage{aiMessage(Greeting)},
	}
}

// Send appends text as a user message, asks the model, and appends the reply
// (or the apology if the model fails). It returns the appended reply.
func (a *Assistant) Send(ctx context.Context, text string) (types.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		observability.ChatRejections.WithLabelValues("empty").Inc()
		return types.ChatMessage{}, ErrEmptyMessage
	}
	if !a.pending.TryAcquire(1) {
		observability.ChatRejections.WithLabelValues("busy").Inc()
		return types.ChatMessage{}, ErrBusy
	}
	defer a.pending.Release(1)

	a.mu.Lock()
	a.messages = append(a.messages, types.ChatMessage{Sender: types.SenderUser, Text: text})
	a.thinking = true
	history := a.copyMessages()
	a.mu.Unlock()

	reply := Apology
	if a.model != nil {
		var profile types.ApplicantProfile
		var score *types.ScoreResult
		if a.source != nil {
			profile, score = a.source.ChatContext()
		}
		out, err := a.model.Chat(ctx, profile, score, history, text)
		if err != nil {
			a.logger.Warn("chat reply failed", zap.Error(err))
		} else {
			reply = out
		}
	}

	msg := aiMessage(reply)
	a.mu.Lock()
	a.messages = append(a.messages, msg)
	a.thinking = false
	a.mu.Unlock()

	return msg, nil
}

// Messages returns a copy of the log.
func (a *Assistant) Messages() []types.ChatMessage {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.copyMessages()
}

// Thinking reports whether a reply is pending.
func (a *Assistant) Thinking() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.thinking
}

func (a *Assistant) copyMessages() []types.ChatMessage {
	out := make([]types.ChatMessage, len(a.messages))
	copy(out, a.messages)
	return out
}

func aiMessage(text string) types.ChatMessage {
	return types.ChatMessage{Sender: types.SenderAI, Text: text, HTML: Render(text)}
}
