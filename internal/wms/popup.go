package wms

import (
	"fmt"

	"github.com/paulmach/orb/geojson"
)

// Label maps an attribute key to its caption.
type Label struct {
	Key   string
	Label string
}

// PopupLine is one rendered attribute.
type PopupLine struct {
	Label string `json:"label" doc:"Attribute caption" example:"Region - 1"`
	Value string `json:"value" doc:"Attribute value" example:"Center"`
}

// Popup renders props through labels, in label order. Missing, null,
// empty-string, zero and false attributes are skipped.
func Popup(props geojson.Properties, labels []Label) []PopupLine {
	lines := make([]PopupLine, 0, len(labels))
	for _, l := range labels {
		v, ok := props[l.Key]
		if !ok || !present(v) {
			continue
		}
		lines = append(lines, PopupLine{Label: l.Label, Value: fmt.Sprint(v)})
	}
	return lines
}

func present(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case float64:
		return x != 0
	case bool:
		return x
	}
	return true
}
