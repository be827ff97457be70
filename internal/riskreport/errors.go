package riskreport

import (
	"errors"
	"fmt"

	"github.com/psicapp/riskwatch/internal/auth"
	"github.com/psicapp/riskwatch/internal/repository"
)

var (
	// ErrUnauthenticated is returned when no current user can be resolved
	ErrUnauthenticated = auth.ErrUnauthenticated
	// ErrUnauthorized is returned to callers without the admin role
	ErrUnauthorized = errors.New("administrator role required")
	// ErrNotFound is returned when the addressed report does not exist
	ErrNotFound = repository.ErrNotFound
	// ErrNoKeywords is returned when a report would have no detected keywords
	ErrNoKeywords = errors.New("a risk report needs at least one detected keyword")
)

// StoreError wraps a failed persistence call
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// storeErr keeps ErrNotFound visible and wraps everything else
func storeErr(op string, err error) error {
	if err == nil || errors.Is(err, repository.ErrNotFound) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
