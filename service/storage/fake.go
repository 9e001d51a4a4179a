package storage

import (
	"context"
	"os"
	"sync"
)

// fakeService remembers what it was asked to store. Tests use it in place
// of MinIO; without storage settings main leaves uploads off.
type fakeService struct {
	mu     sync.Mutex
	stored map[string]string
}

func NewFake() IService {
	return &fakeService{
		stored: map[string]string{},
	}
}

func (svc *fakeService) StoreFile(_ context.Context, key, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.stored[key] = path
	return "fake://" + key, nil
}

// Stored returns the keys stored so far by a service created with NewFake.
func Stored(svc IService) map[string]string {
	fake, ok := svc.(*fakeService)
	if !ok {
		return nil
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	out := make(map[string]string, len(fake.stored))
	for k, v := range fake.stored {
		out[k] = v
	}
	return out
}
