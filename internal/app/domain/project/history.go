package project

// HistoryCategory classifies a history entry.
type HistoryCategory string

const (
	HistorySales       HistoryCategory = "営業"
	HistoryWork        HistoryCategory = "作業"
	HistoryMaintenance HistoryCategory = "メンテ"
)

// History is an append-only note attached to a project. InputBy is the
// email of the signed-in user who wrote it.
type History struct {
	ID        int64           `json:"id,omitempty"`
	CreatedAt string          `json:"created_at,omitempty"`
	ProjectID int64           `json:"project_id"`
	Category  HistoryCategory `json:"category"`
	Date      string          `json:"date"`
	Content   string          `json:"content"`
	InputBy   string          `json:"input_by"`
}
