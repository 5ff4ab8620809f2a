package models

import "time"

type AnalysisStatus string

const (
	AnalysisStatusPending AnalysisStatus = "pending"
	AnalysisStatusDone    AnalysisStatus = "done"
	AnalysisStatusFailed  AnalysisStatus = "failed"
)

type Analysis struct {
	ID          string
	Domain      Domain
	RecordID    int64
	RequestedBy string
	Status      AnalysisStatus
	Result      string
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
