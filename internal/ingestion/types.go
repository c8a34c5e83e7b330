// Package ingestion turns a document folder into corpus sources: it lists
// files, picks an extractor per extension and pulls plain text out of
// each file in a worker pool.
package ingestion

import "time"

// LoadFolderRequest is the JSON body accepted by the folder endpoint.
type LoadFolderRequest struct {
	Path      string `json:"path"`
	Recursive bool   `json:"recursive"`
}

// LoadFolderResponse reports the snapshot built from a newly selected
// folder.
type LoadFolderResponse struct {
	Dir        string `json:"dir"`
	Recursive  bool   `json:"recursive"`
	Documents  int    `json:"documents"`
	Generation uint64 `json:"generation"`
}

// RefreshEvent is the Kafka message payload asking every replica to
// rebuild its index from the document folder.
type RefreshEvent struct {
	Reason      string    `json:"reason"`
	Dir         string    `json:"dir"`
	Paths       []string  `json:"paths,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}
