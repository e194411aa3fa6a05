package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/memscribe/memscribe/pkg/core"
	"github.com/memscribe/memscribe/pkg/session"
)

// HTTPServerConfig configures the HTTP JSON-RPC transport (POST /mcp),
// which requires bearer authentication through the Session & Auth
// component — unlike the stdio transport, which trusts the local OS
// user.
type HTTPServerConfig struct {
	Dispatcher         *Dispatcher
	Authenticator      *session.Authenticator
	CORSAllowedOrigins []string
	Log                *zap.Logger
}

// NewHTTPRouter builds the chi router serving POST /mcp plus an
// unauthenticated /healthz, mirroring the corpus's health-endpoint
// convention of leaving liveness checks outside the auth boundary.
func NewHTTPRouter(cfg HTTPServerConfig) chi.Router {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/mcp", func(mcp chi.Router) {
		mcp.Use(bearerAuthMiddleware(cfg.Authenticator, log))
		mcp.Post("/", handleMCPPost(cfg.Dispatcher, log))
	})

	return r
}

type userIDKey struct{}

// bearerAuthMiddleware resolves the Authorization header through
// Authenticator.Authenticate and stores the verified user id in the
// request context; a failure short-circuits before the dispatcher with
// a plain JSON {"error": ...} body and HTTP 401, or 429 plus a
// Retry-After header when the attempt was rate limited.
func bearerAuthMiddleware(auth *session.Authenticator, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeAuthError(w, &session.AuthError{Reason: "missing Authorization header"})
				return
			}

			userID, _, err := auth.Authenticate(r.Context(), header)
			if err != nil {
				log.Warn("bearer authentication failed", zap.Error(err))
				writeAuthError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey{}, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, err error) {
	status := http.StatusUnauthorized
	var retryAfter int
	if ae, ok := err.(*session.AuthError); ok && ae.RetryAfter > 0 {
		status = http.StatusTooManyRequests
		retryAfter = int(ae.RetryAfter.Seconds()) + 1
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func handleMCPPost(d *Dispatcher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := r.Context().Value(userIDKey{}).(string)

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Debug("failed to decode JSON-RPC request", zap.Error(err))
			writeResponse(w, errorResponse(nil, CodeParseError, "parse error: "+err.Error(), nil))
			return
		}

		cctx, cancel := core.NewContext(r.Context(), userID, log)
		defer cancel()

		resp := d.Dispatch(cctx.Ctx, userID, &req)
		if resp == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeResponse(w, resp)
	}
}

func writeResponse(w http.ResponseWriter, resp *Response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}
