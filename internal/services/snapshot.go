package services

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// toJSON freezes a snapshot map into a JSON column value. A nil map is
// stored as NULL.
func toJSON(snapshot map[string]any) (datatypes.JSON, error) {
	if snapshot == nil {
		return nil, nil
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

// fromJSON decodes a stored snapshot. NULL and malformed values yield nil.
func fromJSON(raw datatypes.JSON) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var snapshot map[string]any
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil
	}
	return snapshot
}
