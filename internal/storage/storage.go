package storage

import "liquidityPortal/internal/model"

// Storage defines a sink for operation history records.
type Storage interface {
	PutOperations(records []model.OperationRecord) error
}
