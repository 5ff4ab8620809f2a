package models

import "time"

type Incident struct {
	ID           int64
	Date         string
	IncidentType string
	Severity     string
	Status       string
	Description  string
	ReportedBy   string
	CreatedAt    time.Time
}

type Dataset struct {
	ID          int64
	Name        string
	Category    string
	Source      string
	LastUpdated string
	RecordCount int64
	ColumnCount int64
	FileSizeMB  float64
	ObjectKey   string
	CreatedAt   time.Time
}

type Ticket struct {
	ID           int64
	Priority     string
	Status       string
	Category     string
	Subject      string
	Description  string
	CreatedDate  string
	ResolvedDate string
	AssignedTo   string
	CreatedAt    time.Time
}

// GroupCount is one row of a group-by-count aggregate.
type GroupCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}
