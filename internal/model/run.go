package model

import "time"

// RunStatus represents the current state of a scoring run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run records one batch scoring invocation over a portfolio.
type Run struct {
	ID        string    `json:"id"`
	Portfolio string    `json:"portfolio"` // source document path
	Status    RunStatus `json:"status"`
	Companies int       `json:"companies"` // entries in the portfolio
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Report    string    `json:"report,omitempty"` // written workbook path
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
