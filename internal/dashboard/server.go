// Package dashboard serves a finished replay over HTTP: summary and ledger
// JSON for tooling, plus a small HTML view for eyeballing a run.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/utica_condor/internal/engine"
)

// Server exposes one immutable run result. It holds no mutable state, so
// every handler is safe for concurrent use.
type Server struct {
	router    *chi.Mux
	server    *http.Server
	result    *engine.Result
	logger    *logrus.Logger
	port      int
	authToken string
}

// Config holds the dashboard listen settings.
type Config struct {
	Port      int
	AuthToken string
}

// NewServer builds a dashboard over a finished run.
func NewServer(cfg Config, result *engine.Result, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Server{
		router:    chi.NewRouter(),
		result:    result,
		logger:    logger,
		port:      cfg.Port,
		authToken: cfg.AuthToken,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	if s.authToken != "" {
		s.router.Use(s.authMiddleware)
	}

	s.router.Get("/", s.handleIndex)
	s.router.Get("/api/summary", s.handleSummary)
	s.router.Get("/api/trades", s.handleTrades)
	s.router.Get("/api/equity", s.handleEquity)
	s.router.Get("/health", s.handleHealth)
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token != s.authToken {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start blocks serving the dashboard until Shutdown or a listener error.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Infof("Serving results dashboard on port %d", s.port)
	return s.server.ListenAndServe()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

// summaryView is the flattened run summary served at /api/summary.
type summaryView struct {
	Ticker         string  `json:"ticker"`
	Strategy       string  `json:"strategy"`
	Start          string  `json:"start"`
	End            string  `json:"end"`
	TradingDays    int     `json:"trading_days"`
	InitialCapital float64 `json:"initial_capital"`
	FinalEquity    float64 `json:"final_equity"`
	TotalNetPnL    float64 `json:"total_net_pnl"`
	ReturnPct      float64 `json:"return_pct"`
	Trades         int     `json:"trades"`
	WinRate        float64 `json:"win_rate"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	Sharpe         float64 `json:"sharpe"`
}

func (s *Server) summary() summaryView {
	r := s.result
	return summaryView{
		Ticker:         r.Ticker,
		Strategy:       r.Strategy,
		Start:          r.Start.Format("2006-01-02"),
		End:            r.End.Format("2006-01-02"),
		TradingDays:    r.TradingDays,
		InitialCapital: r.InitialCapital,
		FinalEquity:    r.FinalEquity,
		TotalNetPnL:    r.TotalNetPnL,
		ReturnPct:      r.ReturnPct,
		Trades:         r.Stats.Trades,
		WinRate:        r.Stats.WinRate,
		MaxDrawdownPct: r.Stats.MaxDrawdownPct,
		Sharpe:         r.Stats.Sharpe,
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.summary())
}

func (s *Server) handleTrades(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.result.Ledger)
}

func (s *Server) handleEquity(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, s.result.Curve)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Summary.Ticker}} replay</title>
<style>
body { font-family: monospace; margin: 2em; }
table { border-collapse: collapse; }
td, th { border: 1px solid #999; padding: 4px 8px; text-align: right; }
th { background: #eee; }
.neg { color: #b00; }
</style>
</head>
<body>
<h1>{{.Summary.Strategy}} on {{.Summary.Ticker}} ({{.Summary.Start}} .. {{.Summary.End}})</h1>
<p>
Final equity ${{printf "%.2f" .Summary.FinalEquity}}
({{printf "%.2f" .Summary.ReturnPct}}%) over {{.Summary.Trades}} trades,
win rate {{printf "%.1f" .Summary.WinRate}}%,
max drawdown {{printf "%.2f" .Summary.MaxDrawdownPct}}%.
</p>
<table>
<tr><th>Entry</th><th>Exit</th><th>Strategy</th><th>Contracts</th><th>Settle</th><th>Net P&amp;L</th><th>Outcome</th></tr>
{{range .Trades}}
<tr>
<td>{{.EntryDate.Format "2006-01-02"}}</td>
<td>{{.ExitDate.Format "2006-01-02"}}</td>
<td>{{.Candidate.Strategy}}</td>
<td>{{.Contracts}}</td>
<td>{{printf "%.2f" .SettlePrice}}</td>
<td{{if lt .NetPnL 0.0}} class="neg"{{end}}>{{printf "%.2f" .NetPnL}}</td>
<td>{{.Outcome}}</td>
</tr>
{{end}}
</table>
</body>
</html>`))

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	data := struct {
		Summary summaryView
		Trades  interface{}
	}{Summary: s.summary(), Trades: s.result.Ledger}

	if err := indexTemplate.Execute(w, data); err != nil {
		s.logger.WithError(err).Error("Failed to render index")
	}
}
