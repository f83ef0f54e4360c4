package client

// ErrorResponse is the JSON body of every non-2xx API response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CollectionInfo is one entry of GET /api/v1/collections.
type CollectionInfo struct {
	Name   string `json:"name"`
	Count  int    `json:"count"`
	Active int    `json:"active"`
}

// ReorderRequest is the body of POST /api/v1/collections/{collection}/reorder.
type ReorderRequest struct {
	IDs []int64 `json:"ids"`
}
