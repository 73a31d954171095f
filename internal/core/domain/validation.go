package domain

type IssueKind string

const (
	IssueOutOfStock        IssueKind = "out-of-stock"
	IssueInsufficientStock IssueKind = "insufficient-stock"
)

// Issue describes one cart line that cannot be fulfilled at current stock.
type Issue struct {
	ItemID            string    `json:"item_id"`
	Kind              IssueKind `json:"kind"`
	AvailableStock    float64   `json:"available_stock"`
	RequestedQuantity float64   `json:"requested_quantity"`
}

// IssueCount aggregates issues by kind for compact summaries.
type IssueCount struct {
	Kind  IssueKind `json:"kind"`
	Count int       `json:"count"`
}

type QuickResult struct {
	IsValid bool         `json:"is_valid"`
	Issues  []IssueCount `json:"issues,omitempty"`
}

type FixType string

const (
	FixReduced FixType = "reduced"
	FixRemoved FixType = "removed"
)

// Fix records one auto-correction that was applied to the cart.
type Fix struct {
	ItemID      string  `json:"item_id"`
	Type        FixType `json:"type"`
	OldQuantity float64 `json:"old_quantity"`
	NewQuantity float64 `json:"new_quantity,omitempty"`
	Reason      string  `json:"reason"`
}

// CorrectionError records one auto-correction that failed to apply. Sibling
// corrections are not aborted by a failure.
type CorrectionError struct {
	ItemID  string `json:"item_id"`
	Message string `json:"message"`
}

// Report is the structured outcome of a full validation run. NoAction means
// the run was skipped (reentrancy, cooldown or empty cart); NoChanges means
// the cart was checked and found valid.
type Report struct {
	Success   bool              `json:"success"`
	IsValid   bool              `json:"is_valid"`
	NoAction  bool              `json:"no_action,omitempty"`
	NoChanges bool              `json:"no_changes,omitempty"`
	Corrected bool              `json:"corrected,omitempty"`
	Issues    []Issue           `json:"issues,omitempty"`
	Fixes     []Fix             `json:"fixes,omitempty"`
	Errors    []CorrectionError `json:"errors,omitempty"`
	Error     string            `json:"error,omitempty"`
}
