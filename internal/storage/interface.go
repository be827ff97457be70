package storage

import (
	"context"
	"errors"
)

// ErrBlobNotFound is returned by Retrieve when the blob does not exist
var ErrBlobNotFound = errors.New("blob not found")

// StorageInterface defines the contract for storage operations
type StorageInterface interface {
	Store(ctx context.Context, filename string, data []byte) error
	Retrieve(ctx context.Context, filename string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
}
