// Package cli implements coschedctl, a command-line client that sends single
// requests to a node agent. It is meant for scripts that wrap workers which
// cannot link the client package, and for poking at a running cluster.
package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/twitter/cosched/client"
	"github.com/twitter/cosched/protocol"
)

// CLIClient holds the root command and the state shared by subcommands.
type CLIClient struct {
	RootCmd  *cobra.Command
	Addr     string
	LogLevel string
	Client   *client.Client
}

// Cmd is one coschedctl subcommand.
type Cmd interface {
	RegisterFlags() *cobra.Command
	Run(cl *CLIClient, cmd *cobra.Command, args []string) error
}

func NewCLIClient() *CLIClient {
	c := &CLIClient{}
	c.RootCmd = &cobra.Command{
		Use:                "coschedctl",
		Short:              "coschedctl sends co-scheduling requests to a node agent",
		SilenceUsage:       true,
		PersistentPreRunE:  c.Init,
		PersistentPostRunE: c.Close,
	}
	defaultAddr, _ := client.AgentAddrFromEnv()
	c.RootCmd.PersistentFlags().StringVar(&c.Addr, "addr", defaultAddr, "Agent address host:port. If unset, uses localhost:$COSCHED_AGENT_PORT")
	c.RootCmd.PersistentFlags().StringVar(&c.LogLevel, "log_level", "error", "Log everything at this level and above (error|info|debug)")

	c.addCmd(&pidCmd{kind: protocol.Register, short: "Register a worker pid with the agent"})
	c.addCmd(&pidCmd{kind: protocol.Unregister, short: "Unregister a worker pid"})
	c.addCmd(&kindCmd{kind: protocol.Stop, short: "Ask the agent to suspend its registered pids"})
	c.addCmd(&kindCmd{kind: protocol.Cont, short: "Ask the agent to resume its registered pids"})
	c.addCmd(&kindCmd{kind: protocol.CommBegin, short: "Mark the start of a communication phase"})
	c.addCmd(&kindCmd{kind: protocol.CommEnd, short: "Mark the end of a communication phase"})
	return c
}

func (c *CLIClient) Exec() error {
	return c.RootCmd.Execute()
}

// SetArgs and SetOutput are for tests and embedding.
func (c *CLIClient) SetArgs(args []string) {
	c.RootCmd.SetArgs(args)
}

func (c *CLIClient) SetOutput(w io.Writer) {
	c.RootCmd.SetOutput(w)
}

// Can only be called from cobra command run or hook
func (c *CLIClient) Init(cmd *cobra.Command, args []string) error {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)

	if c.Addr == "" {
		return fmt.Errorf("agent address unset and COSCHED_AGENT_PORT is invalid")
	}
	c.Client, err = client.New(c.Addr)
	return err
}

// Needs cobra parameters for use from RootCmd
func (c *CLIClient) Close(cmd *cobra.Command, args []string) error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}

func (c *CLIClient) addCmd(cmd Cmd) {
	cobraCmd := cmd.RegisterFlags()
	cobraCmd.RunE = func(innerCmd *cobra.Command, args []string) error {
		return cmd.Run(c, innerCmd, args)
	}
	c.RootCmd.AddCommand(cobraCmd)
}

// pidCmd sends a request that names a pid.
type pidCmd struct {
	kind  protocol.Kind
	short string
}

func (p *pidCmd) RegisterFlags() *cobra.Command {
	return &cobra.Command{
		Use:   p.kind.CLIName() + " <pid>",
		Short: p.short,
		Args:  cobra.ExactArgs(1),
	}
}

func (p *pidCmd) Run(cl *CLIClient, cmd *cobra.Command, args []string) error {
	pid, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil {
		return errors.Wrapf(err, "invalid pid %q", args[0])
	}
	req := protocol.Request{Kind: p.kind, Pid: int32(pid)}
	log.Infof("Sending %s to %s", req, cl.Client.Addr())
	return cl.Client.Send(req)
}

// kindCmd sends a request with no pid.
type kindCmd struct {
	kind  protocol.Kind
	short string
}

func (k *kindCmd) RegisterFlags() *cobra.Command {
	return &cobra.Command{
		Use:   k.kind.CLIName(),
		Short: k.short,
		Args:  cobra.NoArgs,
	}
}

func (k *kindCmd) Run(cl *CLIClient, cmd *cobra.Command, args []string) error {
	req := protocol.Request{Kind: k.kind}
	log.Infof("Sending %s to %s", req, cl.Client.Addr())
	return cl.Client.Send(req)
}
