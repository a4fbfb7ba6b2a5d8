package cmd

import (
	"errors"

	"github.com/abdul-hamid-achik/restapi/packages/api"
)

// Exit codes for the restapi CLI
const (
	// ExitSuccess indicates the request (or every repeat) succeeded
	ExitSuccess = 0

	// ExitUnexpectedStatus indicates a status, path or schema check failed
	ExitUnexpectedStatus = 1

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates a network/connection error
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// exitError attaches an exit code to an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func usageError(err error) error {
	return &exitError{code: ExitUsageError, err: err}
}

func configError(err error) error {
	return &exitError{code: ExitConfigError, err: err}
}

func checkError(err error) error {
	return &exitError{code: ExitUnexpectedStatus, err: err}
}

// exitCode maps err to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}

	var statusErr *api.UnexpectedStatusError
	if errors.As(err, &statusErr) {
		return ExitUnexpectedStatus
	}

	var reqErr *api.IncompleteRequestError
	if errors.As(err, &reqErr) {
		return ExitNetworkError
	}

	return ExitUnexpectedStatus
}
