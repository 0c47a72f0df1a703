package main

import (
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/twitter/cosched/common/endpoints"
	cerrors "github.com/twitter/cosched/common/errors"
	"github.com/twitter/cosched/common/log/hooks"
	"github.com/twitter/cosched/common/shutdown"
	"github.com/twitter/cosched/config"
	"github.com/twitter/cosched/coordinator"
	"github.com/twitter/cosched/transport"
)

// Cluster-wide co-scheduling coordinator. Counts communication phases relayed
// by the node agents and broadcasts Stop and Cont to all of them.
//
//	cosched-coordinator -agents host1,host2 [-port 8211] [-agent_port 8210]
//
// Every flag can also be given as a COSCHED_* environment variable; flags
// that are set explicitly win.
func main() {
	log.AddHook(hooks.NewContextHook())

	def := config.DefaultCoordinatorConfig()
	envFile := flag.String("env_file", "", "Load COSCHED_* variables from this dotenv file first")
	port := flag.Int("port", def.Port, "UDP port to receive agent requests on")
	agents := flag.String("agents", "", "Comma separated agent hosts")
	agentPort := flag.Int("agent_port", def.AgentPort, "UDP port every agent listens on")
	guaranteed := flag.Duration("guaranteed", def.Guaranteed, "Longest the job runs before it is suspended. Negative disables switching")
	inComm := flag.Duration("in_comm", def.InComm, "Suspend dwell, and the shortest run once communication has stopped")
	checkInterval := flag.Duration("check_interval", def.CheckInterval, "How often the timeslice is evaluated")
	sendTimeout := flag.Duration("send_timeout", def.SendTimeout, "Write deadline for each datagram")
	httpAddr := flag.String("http_addr", def.HTTPAddr, "Serve /health and /admin/metrics.json here. Empty disables")
	logLevel := flag.String("log_level", def.LogLevel, "Log everything at this level and above (error|warn|info|debug|trace)")
	flag.Parse()

	if err := config.LoadEnvFile(*envFile); err != nil {
		exit(cerrors.NewError(err, cerrors.ConfigFailureExitCode))
	}
	cfg := def
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		exit(cerrors.NewError(err, cerrors.ConfigFailureExitCode))
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "agents":
			cfg.AgentAddrs = config.SplitList(*agents)
		case "agent_port":
			cfg.AgentPort = *agentPort
		case "guaranteed":
			cfg.Guaranteed = *guaranteed
		case "in_comm":
			cfg.InComm = *inComm
		case "check_interval":
			cfg.CheckInterval = *checkInterval
		case "send_timeout":
			cfg.SendTimeout = *sendTimeout
		case "http_addr":
			cfg.HTTPAddr = *httpAddr
		case "log_level":
			cfg.LogLevel = *logLevel
		}
	})
	if err := cfg.Validate(); err != nil {
		exit(cerrors.NewError(err, cerrors.ConfigFailureExitCode))
	}
	level, _ := log.ParseLevel(cfg.LogLevel)
	log.SetLevel(level)
	log.Infof("Starting coordinator with %s", cfg)

	exit(run(cfg))
}

func run(cfg config.CoordinatorConfig) *cerrors.ExitCodeError {
	peers, err := transport.ResolvePeers(cfg.AgentAddrs, cfg.AgentPort, transport.DefaultResolveBackOff())
	if err != nil {
		return cerrors.NewError(err, cerrors.ConfigFailureExitCode)
	}
	conn, err := transport.Listen(cfg.Port, cfg.SendTimeout)
	if err != nil {
		return cerrors.NewError(err, cerrors.BindFailureExitCode)
	}

	stat := endpoints.MakeStatsReceiver("coordinator").Precision(time.Millisecond)
	adminErr := serveAdmin(cfg.HTTPAddr, endpoints.NewAdminServer(cfg.HTTPAddr, stat))

	bcast := transport.NewBroadcaster(conn, peers, stat)
	c := coordinator.NewCoordinator(conn, bcast, coordinator.Timeslice{
		Guaranteed:    cfg.Guaranteed,
		InComm:        cfg.InComm,
		CheckInterval: cfg.CheckInterval,
	}, stat)
	log.WithFields(log.Fields{"agents": strings.Join(cfg.AgentAddrs, ","), "peers": len(peers)}).Info("coordinator ready")

	runErr := make(chan error, 1)
	go func() { runErr <- c.Run() }()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	return shutdown.Wait(c.Stop, runErr, adminErr, sigs)
}

// serveAdmin starts the admin endpoint when addr is set. The returned channel
// yields the error that made it stop serving.
func serveAdmin(addr string, s *endpoints.AdminServer) <-chan error {
	errCh := make(chan error, 1)
	if addr == "" {
		return errCh
	}
	go func() { errCh <- s.Serve() }()
	return errCh
}

func exit(err *cerrors.ExitCodeError) {
	if err == nil {
		os.Exit(0)
	}
	log.Errorf("coordinator: %v", err.String())
	os.Exit(int(err.GetExitCode()))
}
