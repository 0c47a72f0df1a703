package main

import (
	"flag"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/twitter/cosched/agent"
	"github.com/twitter/cosched/common/endpoints"
	cerrors "github.com/twitter/cosched/common/errors"
	"github.com/twitter/cosched/common/log/hooks"
	"github.com/twitter/cosched/common/shutdown"
	"github.com/twitter/cosched/config"
	"github.com/twitter/cosched/transport"
)

// Per-node co-scheduling agent. Workers register their pids and mark
// communication phases with it; it relays everything to the coordinator and
// suspends or resumes the registered pids when the coordinator says so.
//
//	cosched-agent -coordinator host [-port 8210] [-coordinator_port 8211]
func main() {
	log.AddHook(hooks.NewContextHook())

	def := config.DefaultAgentConfig()
	envFile := flag.String("env_file", "", "Load COSCHED_* variables from this dotenv file first")
	port := flag.Int("port", def.Port, "UDP port to receive worker and coordinator requests on")
	coordAddr := flag.String("coordinator", def.CoordinatorAddr, "Coordinator host")
	coordPort := flag.Int("coordinator_port", def.CoordinatorPort, "Coordinator UDP port")
	maxConcurrency := flag.Int("max_signal_concurrency", def.MaxSignalConcurrency, "Most signals delivered at once per Stop/Cont")
	pruneDead := flag.Bool("prune_dead", def.PruneDead, "Forget pids whose process has exited")
	sendTimeout := flag.Duration("send_timeout", def.SendTimeout, "Write deadline for each relayed datagram")
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
		case "coordinator":
			cfg.CoordinatorAddr = *coordAddr
		case "coordinator_port":
			cfg.CoordinatorPort = *coordPort
		case "max_signal_concurrency":
			cfg.MaxSignalConcurrency = *maxConcurrency
		case "prune_dead":
			cfg.PruneDead = *pruneDead
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
	log.Infof("Starting agent with %s", cfg)

	exit(run(cfg))
}

func run(cfg config.AgentConfig) *cerrors.ExitCodeError {
	peers, err := transport.ResolvePeers([]string{cfg.CoordinatorAddr}, cfg.CoordinatorPort, transport.DefaultResolveBackOff())
	if err != nil {
		return cerrors.NewError(err, cerrors.ConfigFailureExitCode)
	}
	conn, err := transport.Listen(cfg.Port, cfg.SendTimeout)
	if err != nil {
		return cerrors.NewError(err, cerrors.BindFailureExitCode)
	}

	stat := endpoints.MakeStatsReceiver("agent").Precision(time.Millisecond)
	adminErr := make(chan error, 1)
	if cfg.HTTPAddr != "" {
		go func() { adminErr <- endpoints.NewAdminServer(cfg.HTTPAddr, stat).Serve() }()
	}

	a := agent.NewAgent(conn, transport.NewForwarder(conn, peers[0]), agent.NewProcSignaler(), agent.Options{
		MaxSignalConcurrency: cfg.MaxSignalConcurrency,
		PruneDead:            cfg.PruneDead,
	}, stat)
	log.WithFields(log.Fields{
		"coordinator": net.JoinHostPort(cfg.CoordinatorAddr, strconv.Itoa(cfg.CoordinatorPort)),
		"resolved":    peers[0],
	}).Info("agent ready")

	runErr := make(chan error, 1)
	go func() { runErr <- a.Run() }()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	return shutdown.Wait(a.Stop, runErr, adminErr, sigs)
}

func exit(err *cerrors.ExitCodeError) {
	if err == nil {
		os.Exit(0)
	}
	log.Errorf("agent: %v", err.String())
	os.Exit(int(err.GetExitCode()))
}
