package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

var (
	casesOpenedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jury_cases_opened_total",
		Help: "Total number of cases opened by reports",
	})

	casesResolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jury_cases_resolved_total",
		Help: "Total number of cases resolved, by terminal status",
	}, []string{"status"})

	votesCastTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jury_votes_cast_total",
		Help: "Total number of votes cast or changed, by decision",
	}, []string{"decision"})

	enforcementFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jury_enforcement_failures_total",
		Help: "Total number of failed enforcement steps, by step",
	}, []string{"step"})
)

func RecordCaseOpened() {
	casesOpenedTotal.Inc()
}

func RecordCaseResolved(status string) {
	casesResolvedTotal.WithLabelValues(status).Inc()
}

func RecordVoteCast(decision string) {
	votesCastTotal.WithLabelValues(decision).Inc()
}

func RecordEnforcementFailure(step string) {
	enforcementFailuresTotal.WithLabelValues(step).Inc()
}

// Server exposes the Prometheus endpoint on its own listener.
type Server struct {
	srv *http.Server
}

func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{srv: &http.Server{Addr: addr, Handler: mux}}
}

func (s *Server) Start(_ context.Context) error {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("metrics server failed")
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
