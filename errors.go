package borrowlend

import "errors"

// Sentinel errors
var (
	ErrConfig      = errors.New("borrowlend: invalid configuration")
	ErrNotFound    = errors.New("borrowlend: not found")
	ErrTransaction = errors.New("borrowlend: transaction failed")
	ErrNetwork     = errors.New("borrowlend: network error")
)

// ErrNotDeployed is returned when a contract address has not been recorded yet.
// It matches ErrNotFound under errors.Is.
var ErrNotDeployed = &notDeployedError{}

type notDeployedError struct{}

func (*notDeployedError) Error() string { return "borrowlend: contract not deployed" }

func (*notDeployedError) Unwrap() error { return ErrNotFound }

// ErrMissingPrivateKey is returned when no signing credential is available.
var ErrMissingPrivateKey = &missingKeyError{}

type missingKeyError struct{}

func (*missingKeyError) Error() string {
	return "borrowlend: no private key provided (use the " + EnvPrivateKey + " environment variable)"
}

func (*missingKeyError) Unwrap() error { return ErrConfig }
