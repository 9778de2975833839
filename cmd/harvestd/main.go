// Command harvestd is the autonomous Wi-Fi handshake harvester entrypoint:
// it wires configuration, the session source (mock or real), the raw
// injection socket, the engine's epoch loop, and the status/telemetry
// surface, following the teacher's signal-driven shutdown convention.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/corvid-labs/harvestd/internal/adapters/injector"
	"github.com/corvid-labs/harvestd/internal/adapters/reporting"
	"github.com/corvid-labs/harvestd/internal/adapters/sessionsource/mock"
	"github.com/corvid-labs/harvestd/internal/adapters/sessionsource/textproto"
	"github.com/corvid-labs/harvestd/internal/adapters/statusapi"
	"github.com/corvid-labs/harvestd/internal/config"
	"github.com/corvid-labs/harvestd/internal/core/ports"
	"github.com/corvid-labs/harvestd/internal/core/services/prng"
	"github.com/corvid-labs/harvestd/internal/engine"
	"github.com/corvid-labs/harvestd/internal/telemetry"
)

func main() {
	cfg := config.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rng := prng.New()

	var session ports.SessionSource
	var inject ports.FrameInjector

	if cfg.MockMode {
		log.Println("harvestd: running in mock mode, no real radio or session daemon")
		session = mock.New(rng)
	} else {
		client, err := textproto.Dial("unix", "/run/wmap.sock")
		if err != nil {
			log.Fatalf("harvestd: dial session source: %v", err)
		}
		session = client

		inj, err := injector.Open(cfg.Interface)
		if err != nil {
			log.Fatalf("harvestd: open injection socket on %s: %v", cfg.Interface, err)
		}
		inject = inj
	}

	eng, err := engine.New(cfg, engine.Deps{Session: session, Injector: inject, RNG: rng, Clock: ports.RealClock})
	if err != nil {
		log.Fatalf("harvestd: build engine: %v", err)
	}
	defer eng.Close()

	telemetry.InitMetrics()
	shutdownTracer, err := telemetry.InitTracer()
	if err != nil {
		log.Printf("harvestd: tracer init failed, continuing without tracing: %v", err)
	} else {
		defer shutdownTracer(context.Background())
	}

	router, hub := statusapi.NewServer(eng)
	hub.Start(ctx)
	router.HandleFunc("/report", reportHandler(eng)).Methods(http.MethodGet)
	srv := &http.Server{Addr: cfg.Addr, Handler: otelhttp.NewHandler(router, "harvestd.status")}
	go func() {
		log.Printf("harvestd: status API listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("harvestd: status server error: %v", err)
		}
	}()

	log.Println("harvestd: engine starting")
	if err := eng.Run(ctx); err != nil && ctx.Err() == nil {
		log.Printf("harvestd: engine stopped: %v", err)
	}

	log.Println("harvestd: shutting down")
	_ = srv.Close()
	if err := eng.PersistState(); err != nil {
		log.Printf("harvestd: final state persist: %v", err)
	}
}

// reportHandler renders the session-summary PDF (§6 "durable reporting") on
// demand from the event log's most recent rows.
func reportHandler(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if eng.Events == nil {
			http.Error(w, "event log unavailable", http.StatusServiceUnavailable)
			return
		}
		epochs, err := eng.Events.RecentEpochs(r.Context(), 100)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		shakes, err := eng.Events.Handshakes(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		pdf, err := reporting.NewSessionReporter().Export(reporting.SessionSummary{
			GeneratedAt: time.Now(),
			Mood:        eng.MoodSnapshot(),
			Epochs:      epochs,
			Handshakes:  shakes,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(pdf)
	}
}
