// Package models defines the in-memory SWADL definition model produced by the
// parser and consumed by the graph builder.
package models

type Workflow struct {
	ID             string         `yaml:"id"              validate:"required,min=1"`
	Version        string         `yaml:"version"`
	ToPublish      *bool          `yaml:"to-publish"`
	ExpirationDate string         `yaml:"expiration-date"` // RFC3339, optional
	Variables      map[string]any `yaml:"variables"`
	Activities     []Activity     `yaml:"activities"      validate:"required,min=1,dive"`
}

// IsToPublish reports whether the workflow should be deployed. A workflow is
// publishable unless it explicitly opts out (draft).
func (w *Workflow) IsToPublish() bool {
	return w.ToPublish == nil || *w.ToPublish
}

func (w *Workflow) ActivityByID(id string) (*Activity, bool) {
	for i := range w.Activities {
		if w.Activities[i].ID == id {
			return &w.Activities[i], true
		}
	}

	return nil, false
}
