package session

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/memory"

	"memo-rag/internal/models"
)

var ErrEmptySessionID = errors.New("session id must not be empty")

// Archiver receives a copy of every appended turn pair. It is write only,
// the store never reads history back from it.
type Archiver interface {
	ArchiveTurns(ctx context.Context, sessionID string, turns []models.Turn) error
}

// Store maps session ids to their chat history for the lifetime of the
// process. Histories are append only.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*memory.ChatMessageHistory
	archive  Archiver
}

// NewStore creates an empty store, archive may be nil.
func NewStore(archive Archiver) *Store {
	return &Store{
		sessions: make(map[string]*memory.ChatMessageHistory),
		archive:  archive,
	}
}

// history returns the history of id, creating it on first access.
func (s *Store) history(id string) (*memory.ChatMessageHistory, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrEmptySessionID
	}
	s.mu.RLock()
	h, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return h, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.sessions[id]; ok {
		return h, nil
	}
	h = memory.NewChatMessageHistory()
	s.sessions[id] = h
	log.Debug().Str("session_id", id).Msg("Created session")
	return h, nil
}

// Messages returns a copy of the transcript of id as chat messages.
func (s *Store) Messages(ctx context.Context, id string) ([]llms.ChatMessage, error) {
	h, err := s.history(id)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs, err := h.Messages(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(msgs), nil
}

// Append records a question and its answer as two consecutive turns.
func (s *Store) Append(ctx context.Context, id, question, answer string) error {
	h, err := s.history(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	err = h.AddUserMessage(ctx, question)
	if err == nil {
		err = h.AddAIMessage(ctx, answer)
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if s.archive != nil {
		turns := []models.Turn{
			{Role: models.RoleHuman, Content: question},
			{Role: models.RoleAI, Content: answer},
		}
		if err := s.archive.ArchiveTurns(ctx, id, turns); err != nil {
			log.Error().Err(err).Str("session_id", id).Msg("Error archiving turns")
		}
	}
	return nil
}

// Transcript returns the turns of id in the order they were appended.
func (s *Store) Transcript(ctx context.Context, id string) ([]models.Turn, error) {
	msgs, err := s.Messages(ctx, id)
	if err != nil {
		return nil, err
	}
	return toTurns(msgs), nil
}

// Snapshot returns the transcripts of all sessions keyed by session id.
func (s *Store) Snapshot(ctx context.Context) (map[string][]models.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]models.Turn, len(s.sessions))
	for id, h := range s.sessions {
		msgs, err := h.Messages(ctx)
		if err != nil {
			return nil, err
		}
		out[id] = toTurns(msgs)
	}
	return out, nil
}

// IDs returns the known session ids, sorted.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func toTurns(msgs []llms.ChatMessage) []models.Turn {
	turns := make([]models.Turn, 0, len(msgs))
	for _, m := range msgs {
		role := string(m.GetType())
		switch m.GetType() {
		case llms.ChatMessageTypeHuman:
			role = models.RoleHuman
		case llms.ChatMessageTypeAI:
			role = models.RoleAI
		}
		turns = append(turns, models.Turn{Role: role, Content: m.GetContent()})
	}
	return turns
}
