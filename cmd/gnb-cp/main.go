package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/gnb-controlplane/internal/config"
	"github.com/signalsfoundry/gnb-controlplane/internal/cucp"
	"github.com/signalsfoundry/gnb-controlplane/internal/du"
	"github.com/signalsfoundry/gnb-controlplane/internal/e1ap"
	"github.com/signalsfoundry/gnb-controlplane/internal/e1ap/e1msg"
	"github.com/signalsfoundry/gnb-controlplane/internal/executor"
	"github.com/signalsfoundry/gnb-controlplane/internal/f1ap"
	"github.com/signalsfoundry/gnb-controlplane/internal/gateway"
	"github.com/signalsfoundry/gnb-controlplane/internal/logging"
	"github.com/signalsfoundry/gnb-controlplane/internal/observability"
	"github.com/signalsfoundry/gnb-controlplane/internal/pdu"
	"github.com/signalsfoundry/gnb-controlplane/internal/procedure"
	"github.com/signalsfoundry/gnb-controlplane/timectrl"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML configuration file")
	gatewayAddr := flag.String("gateway-addr", "", "TCP address the PDU gateway listens on (overrides gateway.listen)")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for Prometheus /metrics (overrides metrics.listen)")
	f1Peer := flag.String("f1-peer", "", "CU gateway address for F1AP (overrides gateway.f1_peer)")
	e1Peer := flag.String("e1-peer", "", "CU-UP gateway address for E1AP (overrides gateway.e1_peer)")
	accelerated := flag.Bool("accelerated", false, "Advance time as fast as possible instead of in real time")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	override(&cfg.Gateway.Listen, *gatewayAddr)
	override(&cfg.Metrics.Listen, *metricsAddr)
	override(&cfg.Gateway.F1Peer, *f1Peer)
	override(&cfg.Gateway.E1Peer, *e1Peer)
	if *accelerated {
		cfg.Timers.Mode = timectrl.Accelerated.String()
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logging.New(cfg.Log)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", cfg.Gateway.Listen)
	if err != nil {
		log.Error(ctx, "failed to listen for gateway", logging.String("addr", cfg.Gateway.Listen), logging.Err(err))
		os.Exit(1)
	}
	if err := run(ctx, cfg, log, lis); err != nil {
		log.Error(ctx, "gnb control plane exited", logging.Err(err))
		os.Exit(1)
	}
}

func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// run wires the DU and CU-CP behind one PDU gateway and drives their timers
// until ctx is done.
func run(ctx context.Context, cfg config.Config, log logging.Logger, lis net.Listener) error {
	log = logging.OrNoop(log)

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
	}, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewCollector(nil)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	ctrl := executor.NewWorker("ctrl", cfg.Executors.QueueSize, log)
	ul := executor.NewWorker("ul", cfg.Executors.QueueSize, log)
	workers := []*executor.Worker{ctrl, ul}
	dl := make([]executor.Executor, cfg.Executors.DLCells)
	for i := range dl {
		w := executor.NewWorker(fmt.Sprintf("dl-%d", i), cfg.Executors.QueueSize, log)
		workers = append(workers, w)
		dl[i] = w
	}
	defer func() {
		for _, w := range workers {
			w.Stop()
		}
	}()

	f1Notifier, closeF1, err := peer(cfg.Gateway.F1Peer, "f1ap", log)
	if err != nil {
		return err
	}
	defer closeF1()
	e1Notifier, closeE1, err := peer(cfg.Gateway.E1Peer, "e1ap", log)
	if err != nil {
		return err
	}
	defer closeE1()

	cp, err := cucp.New(cucp.Config{
		MaxUEs:     cfg.Scheduler.MaxUEs,
		QueueDepth: cfg.Scheduler.QueueDepth,
		E1AP: e1ap.Config{
			ResponseTimeout: cfg.E1AP.ResponseTimeout,
			MaxUEIDs:        cfg.E1AP.MaxUEIDs,
		},
	}, cucp.Dependencies{
		E1Notifier: e1Notifier,
		Ctrl:       ctrl,
		Log:        log,
		Metrics:    collector,
	})
	if err != nil {
		return err
	}

	macSched := &ackingScheduler{ctrl: ctrl, log: log}
	d, err := du.New(du.Config{
		Numerology: cfg.DU.Numerology,
		MaxUEs:     cfg.Scheduler.MaxUEs,
		QueueDepth: cfg.Scheduler.QueueDepth,
		F1AP: f1ap.Config{
			Setup:           procedure.RetryPolicy{MaxAttempts: cfg.F1AP.MaxSetupAttempts},
			ResponseTimeout: cfg.F1AP.ResponseTimeout,
			TickQuantum:     cfg.SubframeDuration(),
		},
		SchedConfigTimeout: cfg.DU.SchedConfigTimeout,
	}, du.Dependencies{
		F1Notifier:   f1Notifier,
		Ctrl:         ctrl,
		UL:           ul,
		DL:           dl,
		MACScheduler: macSched,
		Cells:        cellLogger{log: log},
		Log:          log,
		Metrics:      collector,
	})
	if err != nil {
		return err
	}
	macSched.du = d

	registry := pdu.NewRegistry()
	f1ap.RegisterMessages(registry)
	e1msg.Register(registry)
	gwSrv, err := gateway.NewServer(registry, route(d, cp), log)
	if err != nil {
		return err
	}
	grpcServer := gateway.NewGRPCServer(gwSrv, log, collector)

	mode, err := timectrl.ParseMode(cfg.Timers.Mode)
	if err != nil {
		return err
	}
	tc, err := timectrl.NewTimeController(time.Now(), cfg.Timers.Quantum, mode)
	if err != nil {
		return err
	}
	tc.AddListener(func(time.Time) {
		if !ctrl.Execute(func() {
			d.HandleSlot()
			cp.Tick()
		}) {
			log.Warn(context.Background(), "slot dropped: control executor refused it")
		}
	})

	var metricsSrv *http.Server
	if cfg.Metrics.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		metricsSrv = &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "starting PDU gateway", logging.String("addr", lis.Addr().String()))
		return grpcServer.Serve(lis)
	})
	if metricsSrv != nil {
		g.Go(func() error {
			log.Info(gctx, "serving Prometheus metrics", logging.String("addr", metricsSrv.Addr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		log.Info(gctx, "time controller started",
			logging.String("mode", mode.String()),
			logging.Duration("quantum", tc.Quantum()),
		)
		return tc.Run(gctx, 0)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down gnb control plane")
		grpcServer.GracefulStop()
		if metricsSrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		return nil
	})

	if cfg.Gateway.F1Peer != "" {
		d.ConnectToCU(gctx, setupRequest(cfg.DU))
	}

	return g.Wait()
}

// errNoPeer is returned when sending towards a peer that was not configured.
var errNoPeer = errors.New("no peer configured")

func peer(target, protocol string, log logging.Logger) (pdu.Notifier, func(), error) {
	if target == "" {
		return pdu.NotifierFunc(func(ctx context.Context, msg pdu.Message) error {
			return fmt.Errorf("%s: send %s: %w", protocol, msg.MessageType(), errNoPeer)
		}), func() {}, nil
	}
	c, err := gateway.Dial(target, log.With(logging.String("peer", protocol)))
	if err != nil {
		return nil, nil, err
	}
	return c, func() { _ = c.Close() }, nil
}

// route hands F1AP messages to the DU and E1AP messages to the CU-CP.
func route(d *du.DU, cp *cucp.CUCP) pdu.Handler {
	return pdu.HandlerFunc(func(ctx context.Context, msg pdu.Message) error {
		name := msg.MessageType()
		switch {
		case strings.HasPrefix(name, "f1ap."):
			return d.HandleMessage(ctx, msg)
		case strings.HasPrefix(name, "e1ap."):
			return cp.HandleMessage(ctx, msg)
		default:
			return fmt.Errorf("%w: %q", pdu.ErrUnknownMessage, name)
		}
	})
}

func setupRequest(cfg config.DU) f1ap.SetupRequest {
	req := f1ap.SetupRequest{DUID: cfg.ID, DUName: cfg.Name}
	for _, c := range cfg.Cells {
		req.ServedCells = append(req.ServedCells, f1ap.ServedCell{
			NRCGI:   f1ap.NRCGI{PLMN: c.PLMN, NCI: c.NCI},
			PCI:     c.PCI,
			TAC:     c.TAC,
			DLARFCN: c.DLARFCN,
		})
	}
	return req
}
