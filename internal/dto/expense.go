package dto

import "gastoscan/internal/models"

type ProcessResponse struct {
	Success        bool                                     `json:"success"`
	TotalFiles     int                                      `json:"total_files"`
	ProcessedFiles int                                      `json:"processed_files"`
	TotalSpent     float64                                  `json:"total_spent"`
	Categories     map[models.Category]models.CategoryStats `json:"categories"`
	Details        []models.FileResult                      `json:"details"`
	StoreErrors    []string                                 `json:"store_errors,omitempty"`
}

type HistoryResponse struct {
	Success    bool                   `json:"success"`
	Analyses   []models.ExpenseRecord `json:"analyses"`
	Statistics models.Statistics      `json:"statistics"`
}

type SearchRequest struct {
	Query string `json:"query"`
}

type SearchResponse struct {
	Success bool                   `json:"success"`
	Results []models.ExpenseRecord `json:"results"`
	Count   int                    `json:"count"`
}

type QueryRequest struct {
	Query string `json:"query"`
}

type AIQueryResponse struct {
	Success       bool                   `json:"success"`
	Answer        string                 `json:"answer"`
	SearchResults []models.ExpenseRecord `json:"search_results"`
	Statistics    models.Statistics      `json:"statistics"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Database bool   `json:"database"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
