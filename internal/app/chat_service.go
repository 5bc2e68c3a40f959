package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JanhviHarwani/access-ed-backend/internal/model"
	"github.com/JanhviHarwani/access-ed-backend/internal/vectorindex"
)

// Turn states of one chat session. A session is Idle between turns; a failed
// turn parks the session in StateFailed only until the next message arrives.
const (
	StateIdle       = "idle"
	StateRetrieving = "awaiting_retrieval"
	StateGenerating = "awaiting_generation"
	StateFailed     = "failed"
)

// TurnFailedAnswer is the user-visible message for a failed turn.
const TurnFailedAnswer = "I apologize, but I encountered an error processing your request. Please try again."

// ChunkRetriever surfaces scored chunks for a question.
type ChunkRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]RetrievedChunk, error)
}

// AnswerComposer turns retrieved chunks into a grounded answer, whole or
// streamed.
type AnswerComposer interface {
	Compose(ctx context.Context, question string, chunks []RetrievedChunk, history []model.ConversationTurn) (*Answer, error)
	ComposeStream(ctx context.Context, question string, chunks []RetrievedChunk, history []model.ConversationTurn, onChunk func(chunk string) error) (*Answer, error)
}

// HistoryStore keeps the bounded per-session conversation window.
type HistoryStore interface {
	Recent(ctx context.Context, sessionID string) ([]model.ConversationTurn, error)
	Append(ctx context.Context, sessionID string, turn model.ConversationTurn) error
	Clear(ctx context.Context, sessionID string) error
}

// TurnResult is what one completed turn hands back to the front end.
type TurnResult struct {
	SessionID string   `json:"session_id"`
	Answer    string   `json:"answer"`
	ChunkIDs  []string `json:"chunk_ids,omitempty"`
	Sources   []string `json:"sources,omitempty"`
}

// ChatService is the per-turn orchestrator: it sequences retrieval and
// composition for each user message and maintains the session's rolling
// conversation window. Turns within one session run strictly one at a time;
// sessions are independent and share only the stateless clients underneath.
type ChatService struct {
	retriever ChunkRetriever
	composer  AnswerComposer
	history   HistoryStore
	topK      int
	log       *zap.Logger

	sessions sync.Map // session id -> *sessionState
}

type sessionState struct {
	mu    sync.Mutex
	state string
}

func NewChatService(
	retriever ChunkRetriever,
	composer AnswerComposer,
	history HistoryStore,
	topK int,
	log *zap.Logger,
) *ChatService {
	if topK <= 0 {
		topK = 3
	}
	return &ChatService{
		retriever: retriever,
		composer:  composer,
		history:   history,
		topK:      topK,
		log:       log,
	}
}

// HandleMessage runs one turn: retrieve, compose, record. An unreachable or
// empty index degrades to the explicit insufficient-information answer; any
// other failure marks the turn failed and is surfaced as an error without
// touching the session history, so the next turn starts clean.
func (s *ChatService) HandleMessage(ctx context.Context, sessionID, message string) (*TurnResult, error) {
	return s.handleTurn(ctx, sessionID, message, nil)
}

// HandleMessageStream runs one turn like HandleMessage but forwards answer
// deltas to onChunk as they are generated.
func (s *ChatService) HandleMessageStream(ctx context.Context, sessionID, message string, onChunk func(chunk string) error) (*TurnResult, error) {
	return s.handleTurn(ctx, sessionID, message, onChunk)
}

func (s *ChatService) handleTurn(ctx context.Context, sessionID, message string, onChunk func(chunk string) error) (*TurnResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrInvalidInput
	}
	if strings.TrimSpace(sessionID) == "" {
		sessionID = uuid.NewString()
	}

	sess := s.session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if reply, ok := smallTalkReply(message); ok {
		sess.state = StateIdle
		if onChunk != nil {
			if err := onChunk(reply); err != nil {
				return nil, err
			}
		}
		return &TurnResult{SessionID: sessionID, Answer: reply}, nil
	}

	history, err := s.history.Recent(ctx, sessionID)
	if err != nil {
		// Losing follow-up context is better than failing the turn.
		s.log.Warn("read session history failed", zap.String("session_id", sessionID), zap.Error(err))
		history = nil
	}

	sess.state = StateRetrieving
	chunks, err := s.retriever.Retrieve(ctx, message, s.topK)
	if err != nil {
		if !errors.Is(err, vectorindex.ErrIndexUnavailable) {
			return nil, s.failTurn(sess, sessionID, "retrieval", err)
		}
		s.log.Warn("index unavailable, degrading to ungrounded reply",
			zap.String("session_id", sessionID), zap.Error(err))
		chunks = nil
	}

	sess.state = StateGenerating
	var answer *Answer
	if onChunk != nil {
		answer, err = s.composer.ComposeStream(ctx, message, chunks, history, onChunk)
	} else {
		answer, err = s.composer.Compose(ctx, message, chunks, history)
	}
	if err != nil {
		return nil, s.failTurn(sess, sessionID, "generation", err)
	}

	turn := model.ConversationTurn{
		Question:  message,
		Answer:    answer.Text,
		ChunkIDs:  answer.CitedChunkIDs,
		CreatedAt: time.Now(),
	}
	if err := s.history.Append(ctx, sessionID, turn); err != nil {
		s.log.Warn("append session history failed", zap.String("session_id", sessionID), zap.Error(err))
	}

	sess.state = StateIdle
	return &TurnResult{
		SessionID: sessionID,
		Answer:    answer.Text,
		ChunkIDs:  answer.CitedChunkIDs,
		Sources:   answer.Sources,
	}, nil
}

// ResetSession drops the session's conversation window.
func (s *ChatService) ResetSession(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrInvalidInput
	}
	s.sessions.Delete(sessionID)
	return s.history.Clear(ctx, sessionID)
}

// SessionState reports the current turn state, mainly for observability.
func (s *ChatService) SessionState(sessionID string) string {
	if v, ok := s.sessions.Load(sessionID); ok {
		return v.(*sessionState).state
	}
	return StateIdle
}

func (s *ChatService) session(sessionID string) *sessionState {
	v, _ := s.sessions.LoadOrStore(sessionID, &sessionState{state: StateIdle})
	return v.(*sessionState)
}

func (s *ChatService) failTurn(sess *sessionState, sessionID, stage string, err error) error {
	// Terminal for this turn only; the next message starts a fresh turn.
	sess.state = StateFailed
	s.log.Error("turn failed",
		zap.String("session_id", sessionID),
		zap.String("stage", stage),
		zap.Error(err))
	return err
}

var (
	greetingWords  = []string{"hello", "hi", "hey", "good morning", "good afternoon", "good evening"}
	gratitudeWords = []string{"thanks", "thank you", "appreciate"}
	farewellWords  = []string{"bye", "goodbye", "see you", "farewell"}
)

// smallTalkReply short-circuits greetings, thanks and farewells so they
// never hit retrieval or generation.
func smallTalkReply(message string) (string, bool) {
	lower := strings.ToLower(message)
	if containsAny(lower, greetingWords) {
		return "How can I assist you with making education more accessible?", true
	}
	if containsAny(lower, gratitudeWords) {
		return "You're welcome! Let me know if you have any other questions.", true
	}
	if containsAny(lower, farewellWords) {
		return "Goodbye! Feel free to return if you need more assistance.", true
	}
	return "", false
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
