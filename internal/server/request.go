package server

import (
	"encoding/json"
	"errors"
)

// Inputs accepts either a single JSON string or an array of strings.
type Inputs []string

// UnmarshalJSON decodes "text" or ["a", "b"] into a list of texts.
func (in *Inputs) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*in = nil
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*in = Inputs{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return errors.New("inputs must be a string or an array of strings")
	}
	*in = many
	return nil
}

// EmbedRequest is the body of POST /embed and POST /embed/legacy.
type EmbedRequest struct {
	Inputs Inputs `json:"inputs"`
}

// HealthResponse is the body of a successful GET /health.
type HealthResponse struct {
	Status       string `json:"status"`
	Model        string `json:"model"`
	Device       string `json:"device"`
	Method       string `json:"method"`
	Architecture string `json:"architecture"`
}

// InfoResponse is the body of GET /.
type InfoResponse struct {
	Name        string            `json:"name"`
	Model       string            `json:"model"`
	Description string            `json:"description"`
	Dimension   int               `json:"dimension"`
	Endpoints   map[string]string `json:"endpoints"`
	Compatible  string            `json:"compatible"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
