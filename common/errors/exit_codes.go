package errors

type ExitCode int

const (
	// Invalid startup configuration, reported before any network activity.
	ConfigFailureExitCode ExitCode = 10

	// The listening socket could not be bound.
	BindFailureExitCode ExitCode = 11

	// The receive loop lost its socket.
	ReceiveFailureExitCode ExitCode = 12

	// The admin http endpoint stopped serving.
	AdminFailureExitCode ExitCode = 13
)
