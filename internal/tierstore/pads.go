package tierstore

import (
	"encoding/json"

	"github.com/starford/octopad/internal/models"
)

// EncodePads serializes a pad list for the pads column.
func EncodePads(pads []models.Pad) string {
	if len(pads) == 0 {
		return "[]"
	}
	data, err := json.Marshal(pads)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// DecodePads turns whatever the driver returned for the pads column into a pad
// list. Drivers hand back JSON text as string or []byte, and JSON columns may
// already be decoded into []any. Anything unreadable yields an empty list.
func DecodePads(raw any) []models.Pad {
	var data []byte
	switch v := raw.(type) {
	case nil:
		return []models.Pad{}
	case string:
		data = []byte(v)
	case []byte:
		data = v
	case []models.Pad:
		return append([]models.Pad{}, v...)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return []models.Pad{}
		}
		data = encoded
	}

	var pads []models.Pad
	if err := json.Unmarshal(data, &pads); err != nil || pads == nil {
		return []models.Pad{}
	}
	return pads
}
