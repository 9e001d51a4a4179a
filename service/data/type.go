package data

import "github.com/khaledhikmat/framex-go/model"

type IService interface {
	NewError(err interface{}) error
	NewRunSummary(summary model.RunSummary) error
	NewBatchStats(stats model.BatchStats) error

	RetrieveRunSummaries() ([]model.RunSummary, error)
	RetrieveRunSummariesByInput(input string) ([]model.RunSummary, error)
}
