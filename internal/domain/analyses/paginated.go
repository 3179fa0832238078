package analyses

// PaginatedResult represents a paginated response with data and metadata
type PaginatedResult struct {
	Data       []*Analysis `json:"data"`
	Page       int         `json:"page"`
	PageSize   int         `json:"pageSize"`
	Total      int64       `json:"totalItems"`
	TotalPages int         `json:"totalPages"`
}

// Summary rekap hasil analysis N hari terakhir
type Summary struct {
	TotalAnalyses int `json:"total_analyses"`
	Completed     int `json:"completed"`
	Failed        int `json:"failed"`
	InFlight      int `json:"in_flight"`
}
