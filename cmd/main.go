package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"memo-rag/internal/config"
	"memo-rag/internal/db"
	"memo-rag/internal/helper"
	"memo-rag/internal/parser"
	"memo-rag/internal/rag"
	"memo-rag/internal/session"
	"memo-rag/internal/tui"
)

const configFilePath = "./configs/config.yaml"

// fileList collects repeated -file flags.
type fileList []string

func (f *fileList) String() string { return strings.Join(*f, ",") }

func (f *fileList) Set(v string) error {
	*f = append(*f, v)
	return nil
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()

	var files fileList
	configPath := flag.String("config", configFilePath, "Path to the config file")
	flag.Var(&files, "file", "PDF file to upload, may be repeated")
	query := flag.String("query", "", "Question to be answered")
	sessionID := flag.String("session", "", "Session id, defaults to the configured one")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	if *sessionID == "" {
		*sessionID = cfg.Session.DefaultID
	}

	oneShot := len(files) > 0 || *query != ""
	logFile, err := setupLogger(cfg.Log, !oneShot)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening log file")
	}
	if logFile != nil {
		defer logFile.Close()
	}
	log.Debug().Interface("config", cfg.Masked()).Msg("Loaded config")

	store := session.NewStore(nil)
	if cfg.Database.DSN != "" {
		archive, err := db.OpenArchive(context.Background(), &cfg.Database)
		if err != nil {
			log.Error().Err(err).Msg("Error opening transcript archive, continuing without")
		} else {
			defer archive.Close()
			store = session.NewStore(archive)
		}
	}

	if oneShot {
		runOnce(cfg, store, files, *query, *sessionID)
		return
	}

	connect := func(creds config.Credentials) (tui.Engine, error) {
		engine, err := rag.New(cfg, creds, store)
		if err != nil {
			return nil, err
		}
		return engine, nil
	}
	m := tui.New(cfg, cfg.Credentials(), connect)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Fatal().Err(err).Msg("Error running ui")
	}
}

// setupLogger applies the configured level. The interactive ui owns the
// terminal, so its logs go to a file.
func setupLogger(cfg config.LogConfig, toFile bool) (io.Closer, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		log.Warn().Str("level", cfg.Level).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if !toFile {
		return nil, nil
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: f, NoColor: true, TimeFormat: time.RFC3339}).With().Caller().Logger()
	return f, nil
}

func runOnce(cfg *config.Config, store *session.Store, files []string, query, sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.LLM.Timeout)
	defer cancel()

	engine, err := rag.New(cfg, cfg.Credentials(), store)
	if errors.Is(err, config.ErrMissingCredentials) {
		log.Warn().Err(err).Msg("Please enter API key, set MEMO_EMBEDDING_KEY and MEMO_LLM_KEY")
		return
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating rag")
	}

	if len(files) == 0 {
		log.Fatal().Msg("Please provide PDF documents using the -file flag")
	}
	uploads, err := parser.ReadUploads(files)
	if err != nil {
		log.Fatal().Err(err).Msg("Error reading documents")
	}
	chunks, err := engine.Ingest(ctx, uploads)
	if err != nil {
		log.Fatal().Err(err).Msg("Error indexing documents")
	}
	if query == "" {
		log.Info().Int("chunks", chunks).Msg("Documents indexed, no query given")
		return
	}

	answer, err := engine.Ask(ctx, sessionID, query)
	if err != nil {
		log.Fatal().Err(err).Msg("Error querying")
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", answer.Query)

	if answer.StandaloneQuery != answer.Query {
		log.Info().Msg("Standalone query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
		fmt.Printf("%s\n\n", answer.StandaloneQuery)
	}

	log.Info().Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	for _, s := range answer.Sources {
		fmt.Printf("%s p.%d #%d (%.3f)\n", s.Source, s.PageNumber, s.ChunkID, s.Similarity)
	}
	fmt.Println()

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", answer.Content)

	if err := answer.Memo.Validate(); err != nil {
		log.Warn().Err(err).Msg("Memo check")
	}

	log.Info().Str("session", sessionID).Msg("Transcript: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	turns, err := store.Transcript(ctx, sessionID)
	if err != nil {
		log.Fatal().Err(err).Msg("Error reading transcript")
	}
	for _, t := range turns {
		fmt.Printf("%s: %s\n", t.Role, t.Content)
	}
	fmt.Println()

	log.Info().Strs("sessions", store.IDs()).Msg("Store: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	snapshot, err := store.Snapshot(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Error reading session store")
	}
	helper.PrettyPrint(snapshot)
}
