package command

import "strings"

const (
	CategoryLearned = "learned"
	CategoryCustom  = "custom"
)

// Command is a catalog entry before it has been embedded.
type Command struct {
	Id          string `json:"id"`
	Description string `json:"description"`
	Payload     string `json:"payload"`
	Category    string `json:"category,omitempty"`
}

// Validate trims c and reports the reason it cannot be stored, if any.
func (c Command) Validate() (Command, Reason, bool) {
	c.Id = strings.TrimSpace(c.Id)
	c.Description = strings.TrimSpace(c.Description)
	c.Category = strings.TrimSpace(c.Category)

	if len(c.Id) == 0 || len(c.Description) == 0 {
		return c, ReasonEmptyInput, false
	}

	if len(strings.TrimSpace(c.Payload)) == 0 {
		return c, ReasonEmptyPayload, false
	}

	if len(c.Category) == 0 {
		c.Category = CategoryCustom
	}

	return c, "", true
}
