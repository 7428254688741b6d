package models

// CategoryStats is the aggregate for a single category within a record set.
type CategoryStats struct {
	Amount     float64 `json:"amount"`
	Percentage float64 `json:"percentage"`
	Count      int     `json:"count"`
}

// Statistics is the derived aggregate over a record set or processing batch.
// It is recomputed on demand and never persisted. For a processing batch,
// TotalFiles counts every submitted file while ProcessedFiles counts only
// the ones that produced an expense record.
type Statistics struct {
	TotalSpent     float64                    `json:"total_spent"`
	TotalFiles     int                        `json:"total_files"`
	ProcessedFiles int                        `json:"processed_files"`
	Categories     map[Category]CategoryStats `json:"categories"`
}

// YearlyStats aggregates the records whose document date falls in one year.
// Category figures are absolute amounts, not percentages.
type YearlyStats struct {
	Total      float64              `json:"total"`
	Count      int                  `json:"count"`
	Categories map[Category]float64 `json:"categories"`
}

// QueryResponse is the agent's answer to a free-text financial question.
type QueryResponse struct {
	Answer        string          `json:"answer"`
	SearchResults []ExpenseRecord `json:"search_results"`
	Statistics    Statistics      `json:"statistics"`
	Query         string          `json:"query"`
}
