package models

import (
	"encoding/json"
	"time"
)

// Document is a singleton piece of content stored under a fixed key,
// such as the future-vision statement or the about-us text.
type Document struct {
	Key       string          `json:"key"`
	Body      json.RawMessage `json:"body"`
	UpdatedAt time.Time       `json:"updatedAt"`
}
