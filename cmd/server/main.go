package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"fieldline.dev/internal/persistence/plandb"
	"fieldline.dev/internal/persistence/planlog"
	"fieldline.dev/internal/protocol"
	"fieldline.dev/internal/sim/physics"
	"fieldline.dev/internal/sim/tuning"
	"fieldline.dev/internal/transport/ws"
)

// planSink fans finished plans out to the JSONL log and the sqlite index.
type planSink struct {
	logg *log.Logger
	jl   *planlog.PlanLogger
	idx  *plandb.SQLiteIndex
}

func (p *planSink) PlanFinished(res protocol.PlanResultMsg) {
	if p.jl != nil {
		if err := p.jl.WritePlan(res); err != nil {
			p.logg.Printf("plan log: %v", err)
		}
	}
	p.idx.RecordPlan(res)
}

func (p *planSink) RobotRegistered(spec protocol.RobotSpec) {
	p.idx.RecordRobot(spec)
}

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <data>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite plan index")
		disableLog = flag.Bool("disable_log", false, "disable the compressed plan log")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*dataDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", tp)
			tune = tuning.Default()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	engine := physics.New(tune, logger)

	sink := &planSink{logg: logger}
	if !*disableLog {
		sink.jl = planlog.NewPlanLogger(*dataDir)
		defer sink.jl.Close()
	}
	if !*disableDB {
		idx, err := plandb.OpenSQLite(filepath.Join(*dataDir, "plans.db"))
		if err != nil {
			logger.Fatalf("open plan index: %v", err)
		}
		defer idx.Close()
		sink.idx = idx
	}

	server := ws.NewServer(engine, tune, logger)
	server.SetSink(sink)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", server.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	httpServer := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		logger.Printf("listening on %s", *addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Printf("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctx)
}
