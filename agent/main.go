package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/imkonsowa/restaurants-assistant/compose"
	"github.com/imkonsowa/restaurants-assistant/config"
	"github.com/imkonsowa/restaurants-assistant/dialogue"
	"github.com/imkonsowa/restaurants-assistant/events"
	"github.com/imkonsowa/restaurants-assistant/llm"
	"github.com/imkonsowa/restaurants-assistant/logging"
	"github.com/imkonsowa/restaurants-assistant/maps"
	"github.com/imkonsowa/restaurants-assistant/preference"
	"github.com/imkonsowa/restaurants-assistant/recommend"
	"github.com/imkonsowa/restaurants-assistant/retrieval"
	"github.com/imkonsowa/restaurants-assistant/retry"
)

type Agent struct {
	config   *config.Config
	handler  *Handler
	sessions *Registry
	gatherer prometheus.Gatherer
	upgrader websocket.Upgrader
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file loaded:", err)
	}

	cfg := config.LoadConfig()
	slog.SetDefault(logging.New(cfg.Log, os.Stdout))

	policy := retry.FromConfig(cfg.Retry)

	model, err := llm.NewModel(cfg.LLM)
	if err != nil {
		log.Fatal(err)
	}
	embedder, err := llm.NewEmbeddingModel(cfg.LLM)
	if err != nil {
		log.Fatal(err)
	}
	completer := llm.NewClient(model, policy, cfg.LLM.Temperature)

	index, err := retrieval.NewPg(cfg.Postgres.ConnStr(), embedder)
	if err != nil {
		log.Fatal(err)
	}
	defer index.Close()

	mapsClient, err := maps.NewClientFromConfig(cfg.Maps, policy)
	if err != nil {
		log.Fatal(err)
	}

	sessions := NewRegistry(cfg.Chat.SessionTTL)
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	observers := dialogue.Observers{NewMetrics(registry, sessions)}
	if cfg.Nats.Enabled {
		publisher, err := events.NewPublisher(cfg.Nats)
		if err != nil {
			slog.Warn("conversation events disabled", "nats", cfg.Nats.ConnStr(), "err", err)
		} else {
			defer publisher.Close(5 * time.Second)
			observers = append(observers, publisher)
		}
	}

	controller := dialogue.NewController(
		preference.NewExtractor(completer, mapsClient, cfg.Maps.City),
		retrieval.NewRetriever(index, cfg.Retrieval.TopK),
		recommend.NewPipeline(mapsClient, cfg.Recommend),
		compose.NewComposer(completer, mapsClient, cfg.Pager),
		completer,
		observers,
	)

	agent := &Agent{
		config:   cfg,
		handler:  NewHandler(controller, cfg.Chat.StreamDelay),
		sessions: sessions,
		gatherer: registry,
		upgrader: websocket.Upgrader{},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := agent.Run(ctx); err != nil {
		log.Fatalf("failed to run the agent: %v", err)
	}
}

func (a *Agent) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    a.config.Server.Address(),
		Handler: a.Router(),
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("Starting agent", "address", srv.Addr)
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		slog.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func (a *Agent) Router() *gin.Engine {
	r := gin.Default()

	r.StaticFile("/", "web/index.html")

	r.GET("/chat", a.serveChat)

	r.GET("/sessions/:id", func(ctx *gin.Context) {
		s, ok := a.sessions.Get(ctx.Param("id"))
		if !ok {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}

		ctx.JSON(http.StatusOK, s.Snapshot())
	})

	r.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": a.sessions.Len()})
	})

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{})))

	return r
}

func (a *Agent) serveChat(ctx *gin.Context) {
	s := a.sessions.GetOrCreate(ctx.Query("session"))

	c, err := a.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		slog.Warn("failed to upgrade connection", "err", err)
		return
	}
	defer c.Close()

	reqCtx := ctx.Request.Context()

	snapshot := s.Snapshot()
	if err := c.WriteJSON(WebSocketsMessage{
		Type: MessageHistory,
		Data: HistoryData{Session: s.ID, Turns: snapshot.History},
	}); err != nil {
		slog.Error("failed to write to ws connection", "error", err)
		return
	}

	// greets a new session, only reports the state otherwise
	if err := a.stream(c, a.handler.Respond(reqCtx, s, "")); err != nil {
		return
	}

	for {
		var req ChatRequest
		if err := c.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("chat connection closed", "session", s.ID, "err", err)
			}
			return
		}

		input := strings.TrimSpace(req.Input)
		if input == "" {
			if err := c.WriteJSON(WebSocketsMessage{Type: MessageError, Data: "empty input"}); err != nil {
				return
			}
			continue
		}

		if err := a.stream(c, a.handler.Respond(reqCtx, s, input)); err != nil {
			return
		}
	}
}

func (a *Agent) stream(c *websocket.Conn, results chan WebSocketsMessage) error {
	for msg := range results {
		if err := c.WriteJSON(msg); err != nil {
			slog.Error("failed to write to ws connection", "error", err)
			// drain so the producer can finish the turn
			for range results {
			}
			return err
		}
	}

	return nil
}
