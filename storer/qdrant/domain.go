package qdrant

import (
	"encoding/json"
	"fmt"
	"strings"
)

type qdrantEnvelope[T any] struct {
	Status qdrantStatus `json:"status"`
	Result T            `json:"result"`
}

type qdrantStatus struct {
	State string `json:"status"`
	Error string `json:"error,omitempty"`
}

func (s *qdrantStatus) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		s.State = strings.ToLower(v)
		return nil
	}

	var obj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	if obj.Error != "" {
		s.State = "error"
		s.Error = obj.Error
	}
	return nil
}

type qdrantPoint struct {
	Id      string         `json:"id"`
	Score   float64        `json:"score,omitempty"`
	Payload map[string]any `json:"payload"`
	Vector  []float32      `json:"vector,omitempty"`
}

type qdrantScroll struct {
	Points         []qdrantPoint `json:"points"`
	NextPageOffset any           `json:"next_page_offset"`
}

type qdrantCollection struct {
	Config struct {
		Params struct {
			Vectors struct {
				Size     int    `json:"size"`
				Distance string `json:"distance"`
			} `json:"vectors"`
		} `json:"params"`
	} `json:"config"`
}

type httpError struct {
	code int
	body string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("qdrant http %d: %s", e.code, e.body)
}
