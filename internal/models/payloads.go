package models

// These structs define the JSON payloads for the sync-function HTTP entry
// point, which runs one engine pass per request.

// SyncRequest selects the write strategy for a run.
type SyncRequest struct {
	Strategy string `json:"strategy"` // "clean" or "cluster"
}

// SyncResponse reports a completed run.
type SyncResponse struct {
	Status      string   `json:"status"`
	RunStrategy string   `json:"strategy"`
	Applied     int      `json:"applied"`
	AlreadyDone int      `json:"already_done"`
	Failed      int      `json:"failed"`
	Total       int      `json:"total"`
	FailedIDs   []string `json:"failed_ids,omitempty"`
}
