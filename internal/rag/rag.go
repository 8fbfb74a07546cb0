package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/textsplitter"

	"memo-rag/internal/chromemdb"
	"memo-rag/internal/config"
	"memo-rag/internal/embedding"
	"memo-rag/internal/helper"
	"memo-rag/internal/llmservice"
	"memo-rag/internal/memo"
	"memo-rag/internal/models"
	"memo-rag/internal/parser"
	"memo-rag/internal/session"
)

const collectionName = "meeting_chunks"

var (
	ErrNoDocuments   = errors.New("no documents uploaded")
	ErrEmptyQuestion = errors.New("question must not be empty")
)

// Answer is the result of one question: the raw model answer plus the memo
// sections read back out of it.
type Answer struct {
	models.PromptResponse
	Memo memo.Memo
}

// RAG owns the similarity index of the most recent upload batch and answers
// questions against it. Conversation state lives in the session store.
type RAG struct {
	cfg      *config.Config
	embedder embeddings.Embedder
	llm      llms.Model
	store    *session.Store
	splitter textsplitter.TextSplitter

	mu    sync.RWMutex
	index *chromemdb.VectorDBManager
	files []string
}

// New creates the remote clients from the operator's credentials and wires
// them into a RAG.
func New(cfg *config.Config, creds config.Credentials, store *session.Store) (*RAG, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	embedder, err := embedding.NewEmbedder(cfg.Embedder, creds.EmbeddingKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	llm, err := llmservice.NewLLM(cfg.LLM, creds.LLMKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm: %w", err)
	}
	return NewRAG(cfg, creds, embedder, llm, store)
}

func NewRAG(cfg *config.Config, creds config.Credentials, embedder embeddings.Embedder, llm llms.Model, store *session.Store) (*RAG, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return &RAG{
		cfg:      cfg,
		embedder: embedder,
		llm:      llm,
		store:    store,
		splitter: parser.NewSplitter(cfg.RAG),
	}, nil
}

func (r *RAG) Store() *session.Store {
	return r.store
}

// Files lists the uploads behind the current index.
func (r *RAG) Files() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.files...)
}

func (r *RAG) HasDocuments() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index != nil
}

// Ingest extracts, chunks and embeds a whole upload batch into a fresh
// index. The previous index stays in place until the batch succeeded.
func (r *RAG) Ingest(ctx context.Context, uploads []models.Upload) (int, error) {
	pages, err := parser.LoadPDFs(ctx, uploads)
	if err != nil {
		return 0, err
	}
	chunks, err := parser.SplitPages(r.splitter, pages)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, parser.ErrEmptyDocument
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		id, err := helper.GenerateUUID()
		if err != nil {
			return 0, err
		}
		chunks[i].ID = id
		texts[i] = chunks[i].Content
	}

	log.Debug().Int("chunks", len(chunks)).Msg("Embedding chunks")
	vectors, err := r.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	index, err := chromemdb.NewVectorDBManager(collectionName, embedding.EmbedFunc(r.embedder))
	if err != nil {
		return 0, err
	}
	docs := make([]chromem.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = chromemdb.ChunkDocument(chunk, vectors[i])
	}
	if err := index.CreateDocs(ctx, docs); err != nil {
		return 0, err
	}

	if path := r.cfg.Index.ExportPath; path != "" {
		if err := index.Export(path, r.cfg.Index.Compress, r.cfg.Index.EncryptionKey); err != nil {
			log.Error().Err(err).Str("file", path).Msg("Error exporting index")
		}
	}

	files := make([]string, len(uploads))
	for i, u := range uploads {
		files[i] = u.Name
	}

	r.mu.Lock()
	r.index = index
	r.files = files
	r.mu.Unlock()

	log.Info().Int("chunks", len(chunks)).Int("pages", len(pages)).Strs("files", files).Msg("Indexed documents")
	return len(chunks), nil
}

// Contextualize rewrites question into one that can be understood without
// the history. Without history the question is returned as is.
func (r *RAG) Contextualize(ctx context.Context, history []llms.ChatMessage, question string) (string, error) {
	if len(history) == 0 {
		return question, nil
	}

	messages := []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeSystem, models.ContextualizePromptTemplate)}
	messages = append(messages, historyMessages(history)...)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, question))

	standalone, err := llmservice.GenerateText(ctx, r.llm, messages)
	if err != nil {
		return "", fmt.Errorf("failed to contextualize question: %w", err)
	}
	if standalone == "" {
		return question, nil
	}
	log.Debug().Str("question", question).Str("standalone", standalone).Msg("Contextualized question")
	return standalone, nil
}

// Retrieve returns the top_k chunks most similar to query.
func (r *RAG) Retrieve(ctx context.Context, query string) ([]models.Source, error) {
	r.mu.RLock()
	index := r.index
	r.mu.RUnlock()
	if index == nil {
		return nil, ErrNoDocuments
	}

	results, err := index.SearchWithQueryOptions(ctx, chromem.QueryOptions{
		QueryText: query,
		NResults:  r.cfg.RAG.TopK,
	})
	if err != nil {
		return nil, err
	}
	sources := make([]models.Source, len(results))
	for i, res := range results {
		sources[i] = chromemdb.ResultSource(res)
	}
	return sources, nil
}

// Ask answers question within sessionID. The transcript is only extended
// when the whole interaction succeeded.
func (r *RAG) Ask(ctx context.Context, sessionID, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if !r.HasDocuments() {
		return nil, ErrNoDocuments
	}

	history, err := r.store.Messages(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	standalone, err := r.Contextualize(ctx, history, question)
	if err != nil {
		return nil, err
	}

	sources, err := r.Retrieve(ctx, standalone)
	if err != nil {
		return nil, err
	}

	system, err := prompts.NewPromptTemplate(models.MemoPromptTemplate, []string{"context"}).
		Format(map[string]any{"context": joinSources(sources)})
	if err != nil {
		return nil, fmt.Errorf("failed to render prompt: %w", err)
	}

	messages := []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeSystem, system)}
	messages = append(messages, historyMessages(history)...)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, question))

	content, err := llmservice.GenerateText(ctx, r.llm, messages)
	if err != nil {
		return nil, fmt.Errorf("failed to generate memo: %w", err)
	}

	m := memo.Parse(content)
	if err := m.Validate(); err != nil {
		if r.cfg.Memo.Strict {
			return nil, err
		}
		log.Warn().Err(err).Str("session_id", sessionID).Msg("Incomplete memo")
	}

	if err := r.store.Append(ctx, sessionID, question, content); err != nil {
		return nil, err
	}

	return &Answer{
		PromptResponse: models.PromptResponse{
			SessionID:       sessionID,
			Query:           question,
			StandaloneQuery: standalone,
			Sources:         sources,
			Content:         content,
		},
		Memo: m,
	}, nil
}

func historyMessages(history []llms.ChatMessage) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(history))
	for _, m := range history {
		out = append(out, llms.TextParts(m.GetType(), m.GetContent()))
	}
	return out
}

func joinSources(sources []models.Source) string {
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = s.Content
	}
	return strings.Join(parts, models.ContextSeparator)
}
