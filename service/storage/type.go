package storage

import "context"

type IService interface {
	// StoreFile uploads the local file at path under key and returns where
	// it was stored.
	StoreFile(ctx context.Context, key, path string) (string, error)
}
