package domain

// ExportVersion is written into every envelope.
const ExportVersion = "1.0"

// ExportData is the versioned envelope around an exported collection.
// Count is set at export time and is not checked on import.
type ExportData struct {
	Version    string `json:"version"`
	ExportDate string `json:"exportDate"`
	Count      int    `json:"count"`
	Links      []Link `json:"links"`
}

// ImportResult reports a best-effort bulk import.
type ImportResult struct {
	Total        int      `json:"total"`
	SuccessCount int      `json:"success"`
	Errors       []string `json:"errors"`
}

// Summary returns at most limit error messages and how many were left out.
func (r *ImportResult) Summary(limit int) ([]string, int) {
	if limit < 0 || len(r.Errors) <= limit {
		return r.Errors, 0
	}
	return r.Errors[:limit], len(r.Errors) - limit
}
