package handlers

import (
	"net/http"

	"github.com/stanstork/mapscrape-api/internal/normalizer"
)

type optionView struct {
	Name     string   `json:"name"`
	Section  string   `json:"section"`
	Shape    string   `json:"shape"`
	Type     string   `json:"type,omitempty"`
	Optional bool     `json:"optional"`
	Default  any      `json:"default,omitempty"`
	Values   []string `json:"values,omitempty"`
}

// ListOptions describes every accepted input field of a row.
func ListOptions(w http.ResponseWriter, r *http.Request) {
	opts := normalizer.Options()
	views := make([]optionView, 0, len(opts))
	for _, o := range opts {
		v := optionView{
			Name:     o.Name,
			Section:  o.Section,
			Shape:    o.Shape.String(),
			Optional: o.Optional,
			Default:  o.Default,
			Values:   o.Enum,
		}
		if o.Shape == normalizer.ShapeScalar {
			v.Type = o.Type.String()
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, views)
}
