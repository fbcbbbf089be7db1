// Package normalize converts heterogeneous upstream payloads into a uniform
// row-per-company table.
//
// The upstream treasury endpoint has drifted between shapes over time: a
// wrapper object with the company list under one of several keys, a bare
// list, or a single object. The normalizer classifies the payload once and
// dispatches on the shape instead of probing repeatedly. Finding no rows is a
// valid outcome, not an error; callers check for emptiness explicitly.
package normalize

import (
	"encoding/json"
	"fmt"

	"github.com/treasury-tracker/internal/types"
)

// Shape classifies a decoded payload
type Shape string

const (
	// ShapeListUnderKnownKey is a wrapper object carrying the row list under a known key
	ShapeListUnderKnownKey Shape = "list_under_known_key"
	// ShapeBareList is a payload that is itself the row list
	ShapeBareList Shape = "bare_list"
	// ShapeSingleObject is a payload holding a single record
	ShapeSingleObject Shape = "single_object"
)

// knownListKeys is the priority order for locating the row list inside a
// wrapper object. The first matching list-valued key wins.
var knownListKeys = []string{"companies", "data", "items", "treasury"}

// Classification is the result of classifying a payload
type Classification struct {
	Shape Shape
	// Key is the wrapper key the rows were found under, for ShapeListUnderKnownKey
	Key string
	// Items holds the raw row values to normalize
	Items []interface{}
}

// Classify determines the payload shape and extracts the raw row values
func Classify(payload interface{}) Classification {
	if obj, ok := payload.(map[string]interface{}); ok {
		for _, key := range knownListKeys {
			if list, ok := obj[key].([]interface{}); ok {
				return Classification{Shape: ShapeListUnderKnownKey, Key: key, Items: list}
			}
		}
		return Classification{Shape: ShapeSingleObject, Items: []interface{}{payload}}
	}

	if list, ok := payload.([]interface{}); ok {
		return Classification{Shape: ShapeBareList, Items: list}
	}

	return Classification{Shape: ShapeSingleObject, Items: []interface{}{payload}}
}

// Normalize decodes a raw payload and converts it into an ordered row table.
// Nested objects flatten into dotted-path columns. An empty table is a valid
// result. The only error is undecodable JSON.
func Normalize(raw json.RawMessage) ([]types.Row, error) {
	var payload interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}

	return NormalizePayload(payload), nil
}

// NormalizePayload converts an already-decoded payload into a row table
func NormalizePayload(payload interface{}) []types.Row {
	classification := Classify(payload)

	rows := make([]types.Row, 0, len(classification.Items))
	for _, item := range classification.Items {
		rows = append(rows, normalizeItem(item))
	}

	return rows
}

// normalizeItem converts one raw row value into a flat Row
func normalizeItem(item interface{}) types.Row {
	row := make(types.Row)

	obj, ok := item.(map[string]interface{})
	if !ok {
		// Scalar list entries get a single synthetic column
		row["value"] = item
		return row
	}

	flattenInto(row, "", obj)
	return row
}

// flattenInto writes obj into row, joining nested object keys with dots
func flattenInto(row types.Row, prefix string, obj map[string]interface{}) {
	for key, value := range obj {
		column := key
		if prefix != "" {
			column = prefix + "." + key
		}

		if nested, ok := value.(map[string]interface{}); ok {
			flattenInto(row, column, nested)
			continue
		}

		row[column] = value
	}
}
