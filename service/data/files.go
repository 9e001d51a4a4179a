package data

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/framex-go/model"
	"github.com/khaledhikmat/framex-go/service/config"
)

const (
	runsEntity   = "runs"
	errorsEntity = "errors"
	batchEntity  = "batches"
)

type filesDBService struct {
	CfgSvc config.IService
	mu     sync.Mutex
}

// NewFilesDB stores each entity kind as a JSON array in
// <runs folder>/<entity>.json.
func NewFilesDB(cfgsvc config.IService) IService {
	return &filesDBService{
		CfgSvc: cfgsvc,
	}
}

func (svc *filesDBService) NewError(err interface{}) error {
	// Determine if the error is custom
	var customErr model.CustomError
	switch e := err.(type) {
	case model.CustomError:
		customErr = e
	case *model.CustomError:
		customErr = *e
	case error:
		customErr.Processor = "N/A"
		customErr.Inner = e
		customErr.Message = e.Error()
		customErr.StackTrace = "N/A"
	default:
		return xerrors.Errorf("cannot persist %T as an error", err)
	}

	inner := ""
	if customErr.Inner != nil {
		inner = customErr.Inner.Error()
	}

	errorData := struct {
		Timestamp  int64                  `json:"timestamp"`
		RunID      string                 `json:"runId,omitempty"`
		Processor  string                 `json:"processor"`
		Inner      string                 `json:"innerError"`
		Message    string                 `json:"message"`
		StackTrace string                 `json:"stackTrace"`
		Misc       map[string]interface{} `json:"misc"`
	}{
		Timestamp:  time.Now().Unix(),
		Processor:  customErr.Processor,
		Inner:      inner,
		Message:    customErr.Message,
		StackTrace: customErr.StackTrace,
		Misc:       customErr.Misc,
	}
	if runID, ok := customErr.Misc["runId"].(string); ok {
		errorData.RunID = runID
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	return newEntity(errorData, errorsEntity, svc.CfgSvc)
}

func (svc *filesDBService) NewRunSummary(summary model.RunSummary) error {
	if summary.Timestamp == 0 {
		summary.Timestamp = time.Now().Unix()
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return newEntity(summary, runsEntity, svc.CfgSvc)
}

func (svc *filesDBService) NewBatchStats(stats model.BatchStats) error {
	stats.Timestamp = time.Now().Unix()
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return newEntity(stats, batchEntity, svc.CfgSvc)
}

func (svc *filesDBService) RetrieveRunSummaries() ([]model.RunSummary, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return retrieveEntites[model.RunSummary](runsEntity, svc.CfgSvc)
}

func (svc *filesDBService) RetrieveRunSummariesByInput(input string) ([]model.RunSummary, error) {
	summaries, err := svc.RetrieveRunSummaries()
	if err != nil {
		return nil, err
	}

	var result []model.RunSummary
	for _, s := range summaries {
		if s.Input == input {
			result = append(result, s)
		}
	}

	return result, nil
}

func entityPath(filename string, cfgsvc config.IService) string {
	return filepath.Join(cfgsvc.GetRunsFolder(), filename+".json")
}

func newEntity[T any](entity T, filename string, cfgsvc config.IService) error {
	entities, err := retrieveEntites[T](filename, cfgsvc)
	if err != nil {
		return err
	}

	entities = append(entities, entity)

	data, err := json.MarshalIndent(entities, "", "  ")
	if err != nil {
		return xerrors.Errorf("marshal %s: %w", filename, err)
	}

	if err := os.MkdirAll(cfgsvc.GetRunsFolder(), 0o755); err != nil {
		return xerrors.Errorf("create runs folder: %w", err)
	}

	// Write the JSON data to the file (with truncation)
	if err := os.WriteFile(entityPath(filename, cfgsvc), data, 0o644); err != nil {
		return xerrors.Errorf("write %s: %w", filename, err)
	}

	return nil
}

func retrieveEntites[T any](filename string, cfgsvc config.IService) ([]T, error) {
	entities := []T{}

	data, err := os.ReadFile(entityPath(filename, cfgsvc))
	if errors.Is(err, fs.ErrNotExist) {
		return entities, nil
	}
	if err != nil {
		return nil, xerrors.Errorf("read %s: %w", filename, err)
	}

	if err := json.Unmarshal(data, &entities); err != nil {
		return nil, xerrors.Errorf("unmarshal %s: %w", filename, err)
	}

	return entities, nil
}
