package main

import (
	log "github.com/sirupsen/logrus"

	"github.com/twitter/cosched/client/cli"
	"github.com/twitter/cosched/common/log/hooks"
)

// CLI binary to talk to a node agent
//
//	Supported commands: (see "-h" for all options)
//		register [pid]
//		unregister [pid]
//		stop, cont
//		comm-begin, comm-end
//	Global flags:
//		--addr [<host:port> of the agent]
//		--log_level [<error|info|debug> level and above should be logged]
func main() {
	log.AddHook(hooks.NewContextHook())

	if err := cli.NewCLIClient().Exec(); err != nil {
		log.Fatal("Error running coschedctl ", err)
	}
}
