package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bkohler93/thavalon-backend/internal/app/auth"
	"github.com/bkohler93/thavalon-backend/internal/shared/response"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	DefaultFrameRate  = rate.Limit(5)
	DefaultFrameBurst = 10
)

type Gateway struct {
	addr       string
	secret     []byte
	busFactory *ClientTransportBusFactory
	hub        *Hub
	upgrader   websocket.Upgrader
	frameRate  rate.Limit
	frameBurst int
	log        *logrus.Entry
}

func NewGateway(addr string, secret []byte, busFactory *ClientTransportBusFactory, log *logrus.Entry) *Gateway {
	return &Gateway{
		addr:       addr,
		secret:     secret,
		busFactory: busFactory,
		hub:        NewHub(log),
		frameRate:  DefaultFrameRate,
		frameBurst: DefaultFrameBurst,
		log:        log,
	}
}

// SetFrameLimit sets the per connection limit on inbound frames.
func (g *Gateway) SetFrameLimit(r rate.Limit, burst int) {
	g.frameRate = r
	g.frameBurst = burst
}

// AllowOrigins lets browsers served from other origins open sockets. With
// no origins configured only same-origin requests are upgraded.
func (g *Gateway) AllowOrigins(origins ...string) {
	if len(origins) == 0 {
		g.upgrader.CheckOrigin = nil
		return
	}
	g.upgrader.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range origins {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

func (g *Gateway) Hub() *Hub {
	return g.hub
}

func bearerToken(r *http.Request) string {
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// Router serves the websocket endpoint. Connections live until the client
// leaves or ctx is cancelled.
func (g *Gateway) Router(ctx context.Context) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := fmt.Fprintln(w, "OK"); err != nil {
			g.log.WithError(err).Warn("failed to write health response")
		}
	}).Methods(http.MethodGet)

	r.HandleFunc("/schema", g.handleSchema).Methods(http.MethodGet)

	r.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		g.handleWebsocket(ctx, w, r)
	}).Methods(http.MethodGet)

	return handlers.ProxyHeaders(r)
}

// handleSchema lists the keys each response variant always carries.
func (g *Gateway) handleSchema(w http.ResponseWriter, r *http.Request) {
	schema := map[string][]string{
		string(response.Join):            response.Keys(response.NewJoin(true, "")),
		string(response.GameStateType):   response.Keys(response.NewGameState(true, "")),
		string(response.ErrorType):       response.Keys(response.NewError("")),
		string(response.GameStartedType): response.Keys(response.NewNotice(response.GameStartedType, true, "")),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(schema); err != nil {
		g.log.WithError(err).Warn("failed to write schema")
	}
}

func (g *Gateway) handleWebsocket(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	playerID, err := auth.ParseToken(g.secret, bearerToken(r))
	if err != nil {
		g.log.WithError(err).Info("rejecting websocket request")
		http.Error(w, "", http.StatusUnauthorized)
		return
	}

	bus, err := g.busFactory.NewClientTransportBus(ctx, playerID)
	if err != nil {
		g.log.WithError(err).WithField("player_id", playerID).Error("failed to create client transport")
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		g.log.WithError(err).Info("failed to upgrade websocket")
		return
	}

	client := NewClient(conn, playerID, bus, rate.NewLimiter(g.frameRate, g.frameBurst), g.log)
	g.hub.Register(client)
	defer g.hub.Unregister(client)

	if err := client.Run(ctx); err != nil {
		client.log.WithError(err).Info("client connection ended")
	}
}

func (g *Gateway) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", g.addr),
		Handler: handlers.CombinedLoggingHandler(g.log.Writer(), g.Router(ctx)),
	}

	errCh := make(chan error, 1)
	go func() {
		g.log.Info("starting websocket gateway on :" + g.addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("ListenAndServe error - %w", err)
	case <-ctx.Done():
	}

	// hijacked connections are not tracked by Shutdown, they end via ctx
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed - %w", err)
	}
	g.log.Info("server gracefully stopped")
	return nil
}
