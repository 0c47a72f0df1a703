// Package shutdown decides how a daemon's main goroutine ends: on a signal,
// on a failed receive loop, or on a failed admin endpoint.
package shutdown

import (
	"os"

	log "github.com/sirupsen/logrus"

	cerrors "github.com/twitter/cosched/common/errors"
)

// Wait blocks until a signal arrives, the run loop returns or the admin
// endpoint fails. Whenever it calls stop it also waits for the run loop to
// return, so any final sends complete before the process exits.
func Wait(stop func(), runErr <-chan error, adminErr <-chan error, sigs <-chan os.Signal) *cerrors.ExitCodeError {
	select {
	case s := <-sigs:
		log.Infof("Received %s, shutting down", s)
		stop()
		return cerrors.NewError(<-runErr, cerrors.ReceiveFailureExitCode)
	case err := <-runErr:
		return cerrors.NewError(err, cerrors.ReceiveFailureExitCode)
	case err := <-adminErr:
		log.WithFields(log.Fields{"err": err}).Error("admin endpoint failed, shutting down")
		stop()
		<-runErr
		return cerrors.NewError(err, cerrors.AdminFailureExitCode)
	}
}
