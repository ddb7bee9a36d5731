package models

type WinnerStatus string

const (
	WinnerActive         WinnerStatus = "active"
	WinnerCanceled       WinnerStatus = "canceled"
	WinnerUnclaimed      WinnerStatus = "unclaimed"
	WinnerStorageFailure WinnerStatus = "storage_failure"
)

// WinnerInfo describes who currently holds a winning number.
type WinnerInfo struct {
	Number        string       `json:"number"`
	Status        WinnerStatus `json:"status"`
	SelectionID   int64        `json:"selection_id,omitempty"`
	CustomerName  string       `json:"customer_name,omitempty"`
	CustomerPhone string       `json:"customer_phone,omitempty"`
}

type AnnounceResult struct {
	Numbers []string `json:"numbers"`
	Ignored []string `json:"ignored"`
}
