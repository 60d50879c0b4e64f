package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/bkohler93/thavalon-backend/pkg/uuidstring"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const (
	Issuer           = "thavalon-backend"
	GatewayAudience  = "gateway"
	GuestTokenExpiry = time.Hour * 6
)

var ErrInvalidToken = errors.New("invalid token")

type AuthServer struct {
	addr        string
	secret      []byte
	rateLimiter *RateLimiter
	log         *logrus.Entry
}

func NewAuthServer(addr string, secret []byte, log *logrus.Entry) *AuthServer {
	return &AuthServer{
		addr:        addr,
		secret:      secret,
		rateLimiter: NewRateLimiter(),
		log:         log,
	}
}

// IssueGuestToken signs a token whose subject is the player's id.
func IssueGuestToken(secret []byte, playerID uuidstring.ID, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(GuestTokenExpiry)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Issuer:    Issuer,
		Subject:   playerID.String(),
		ID:        uuidstring.NewID().String(),
		Audience:  []string{GatewayAudience},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken verifies a guest token and returns the player id it was issued
// for.
func ParseToken(secret []byte, tokenStr string) (uuidstring.ID, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(GatewayAudience),
	)
	if err != nil {
		return "", fmt.Errorf("%w - %v", ErrInvalidToken, err)
	}

	id, err := uuidstring.Parse(claims.Subject)
	if err != nil {
		return "", fmt.Errorf("%w - subject is not a player id", ErrInvalidToken)
	}
	return id, nil
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (srv *AuthServer) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := fmt.Fprintln(w, "OK"); err != nil {
			srv.log.WithError(err).Warn("failed to write health response")
		}
	}).Methods(http.MethodGet)

	r.HandleFunc("/auth/guest", func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if srv.rateLimiter.DenyGuestRequest(ip) {
			srv.log.WithField("ip", ip).Info("denying repeated guest request")
			http.Error(w, "", http.StatusTooManyRequests)
			return
		}

		guestID := uuidstring.NewID()
		jwtStr, err := IssueGuestToken(srv.secret, guestID, time.Now())
		if err != nil {
			srv.log.WithError(err).Error("failed to sign token")
			http.Error(w, "", http.StatusInternalServerError)
			return
		}

		srv.log.WithField("player_id", guestID).Info("issued guest token")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Length", fmt.Sprint(len(jwtStr)))
		if _, err := w.Write([]byte(jwtStr)); err != nil {
			srv.log.WithError(err).Warn("failed to write token")
		}
	}).Methods(http.MethodPost)

	return handlers.ProxyHeaders(r)
}

func (srv *AuthServer) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", srv.addr),
		Handler: handlers.CombinedLoggingHandler(srv.log.Writer(), srv.Router()),
	}

	errCh := make(chan error, 1)
	go func() {
		srv.log.Info("starting server on :" + srv.addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("ListenAndServe error - %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed - %w", err)
	}
	srv.log.Info("server gracefully stopped")
	return nil
}
