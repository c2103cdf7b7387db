package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"support-agent/internal/config"
	"support-agent/internal/conversation"
	"support-agent/internal/embed"
	"support-agent/internal/llm"
	"support-agent/internal/moderation"
	"support-agent/internal/notify"
	"support-agent/internal/orchestrator"
	"support-agent/internal/retrieval"
	"support-agent/internal/server"
	"support-agent/internal/storage"
	"support-agent/internal/tool"
	"support-agent/internal/tracker"
)

func main() {
	var (
		configPath     string
		oneShotMessage string
		conversationID string
		verbose        bool
	)
	flag.StringVar(&configPath, "config", "", "yaml config path")
	flag.StringVar(&oneShotMessage, "message", "", "run one turn with this message and exit")
	flag.StringVar(&conversationID, "conversation", "", "existing conversation id for one-shot mode")
	flag.BoolVar(&verbose, "verbose", false, "emit loop progress events")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	store, err := storage.NewBoltStore(cfg.StoragePath)
	if err != nil {
		log.Fatal().Err(err).Msg("open storage")
	}
	defer store.Close()

	conversations := conversation.NewManager(store)

	var moderator moderation.Classifier
	if cfg.ModerationEnabled {
		moderator = moderation.New(cfg.ModerationBaseURL, cfg.LLMAPIKey, cfg.ModerationModel, cfg.RequestTimeout)
	} else {
		log.Warn().Msg("moderation disabled by config")
	}

	embedder := embed.New(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModel, cfg.RequestTimeout)
	search := retrieval.NewService(embedder, cfg.IndexPath, cfg.SearchTopK)
	if err := search.Load(); err != nil {
		if errors.Is(err, retrieval.ErrIndexMissing) {
			log.Warn().Str("path", cfg.IndexPath).Msg("search index missing; search_site will degrade")
		} else {
			log.Fatal().Err(err).Msg("load search index")
		}
	} else {
		log.Info().Int("entries", search.EntryCount()).Msg("search index loaded")
	}

	issues := tracker.NewGitHubClient(cfg.TrackerBaseURL, cfg.TrackerToken, cfg.TrackerOwner, cfg.TrackerRepo, cfg.RequestTimeout)
	notifier := notify.NewWebhookNotifier(cfg.HandoffWebhookURL, cfg.RequestTimeout)

	registry := tool.NewRegistry()
	for _, t := range []tool.Tool{
		tool.NewSearchSite(search, cfg.SearchTopK),
		tool.NewCreateIssue(issues, cfg.ServiceLogin, cfg.BugLabels),
		tool.NewCommunityListing(issues, cfg.ServiceLogin, cfg.ListingLabel),
		tool.NewNavigateSite(),
		tool.NewHandoffToHuman(),
		tool.NewSubmitHandoff(notifier),
	} {
		if err := registry.Register(t); err != nil {
			log.Fatal().Err(err).Msg("register tool")
		}
	}

	provider := llm.NewOpenAIProvider(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.RequestTimeout, cfg.LLMMaxRetries)

	orch := orchestrator.New(orchestrator.Options{
		Model:           cfg.LLMModel,
		Temperature:     cfg.LLMTemperature,
		MaxTokens:       cfg.LLMMaxTokens,
		MaxIterations:   cfg.MaxIterations,
		HistoryWindow:   cfg.HistoryWindow,
		ToolOutputLimit: cfg.ToolOutputLimit,
		PromptFile:      cfg.PromptFile,
	}, conversations, moderator, registry, provider, log)

	if oneShotMessage != "" {
		runOneShot(orch, cfg, oneShotMessage, conversationID, verbose, log)
		return
	}

	srv := server.New(orch, log)
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info().Str("addr", cfg.HTTPAddr).Msg("support agent listening")
	log.Fatal().Err(httpSrv.ListenAndServe()).Msg("server stopped")
}

func runOneShot(orch *orchestrator.Orchestrator, cfg config.Config, msg, conversationID string, verbose bool, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.TurnTimeout)
	defer cancel()
	if verbose {
		ctx = orchestrator.WithEventHandler(ctx, func(ev orchestrator.Event) {
			log.Info().Str("type", ev.Type).Msg(ev.Text)
		})
	}

	resp, err := orch.HandleMessage(ctx, orchestrator.Request{
		Message:        msg,
		ConversationID: conversationID,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("turn failed")
	}
	fmt.Printf("conversation=%s\n\n%s\n", resp.ConversationID, resp.Message)
	for _, c := range resp.Citations {
		fmt.Printf("  [%s] %s (%.3f)\n", c.ID, c.Source, c.Score)
	}
	if resp.Issue != nil {
		fmt.Printf("  issue #%d: %s\n", resp.Issue.Number, resp.Issue.URL)
	}
	if resp.NavigateTo != "" {
		fmt.Printf("  navigate: %s\n", resp.NavigateTo)
	}
}
