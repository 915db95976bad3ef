package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// Contribution is a user proposal to add, update or delete values of one movie field.
type Contribution struct {
	ID      string     `json:"id"`
	MovieID string     `json:"movie_id"`
	Field   MovieField `json:"field"`
	OwnerID string     `json:"owner_id"`

	ElementsToAdd    []Payload          `json:"elements_to_add"`
	ElementsToUpdate map[string]Payload `json:"elements_to_update"`
	IDsToDelete      []string           `json:"ids_to_delete"`

	// AddedIDs and ElementsUpdated are filled on acceptance. ElementsUpdated maps each
	// updated record id to the id of the record holding the applied value.
	AddedIDs        []string          `json:"added_ids,omitempty"`
	ElementsUpdated map[string]string `json:"elements_updated,omitempty"`

	Sources     []string   `json:"sources"`
	UserComment string     `json:"user_comment,omitempty"`
	Status      DataStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`

	VerifiedAt          *time.Time `json:"verified_at,omitempty"`
	VerifierID          string     `json:"verifier_id,omitempty"`
	VerificationComment string     `json:"verification_comment,omitempty"`

	Version int `json:"version"`
}

// UpdateTargets returns the ids of records slated for replacement, sorted.
func (c *Contribution) UpdateTargets() []string {
	ids := make([]string, 0, len(c.ElementsToUpdate))
	for id := range c.ElementsToUpdate {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Summary projects the contribution for search results.
func (c *Contribution) Summary() ContributionSummary {
	return ContributionSummary{
		ID:        c.ID,
		MovieID:   c.MovieID,
		Field:     c.Field,
		Status:    c.Status,
		CreatedAt: c.CreatedAt,
	}
}

// ContributionSummary is a search result row.
type ContributionSummary struct {
	ID        string     `json:"id" db:"id"`
	MovieID   string     `json:"movie_id" db:"movie_id"`
	Field     MovieField `json:"field" db:"field"`
	Status    DataStatus `json:"status" db:"status"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// ContributionRequest is the body of a new or edited contribution. Element values stay raw until
// the field is known, then they are decoded into the field's payload type.
type ContributionRequest struct {
	ElementsToAdd    []json.RawMessage          `json:"elements_to_add,omitempty"`
	ElementsToUpdate map[string]json.RawMessage `json:"elements_to_update,omitempty"`
	IDsToDelete      []string                   `json:"ids_to_delete,omitempty" validate:"omitempty,dive,required"`
	Sources          []string                   `json:"sources" validate:"omitempty,dive,required,max=2048"`
	Comment          string                     `json:"comment,omitempty" validate:"max=2000"`
}
