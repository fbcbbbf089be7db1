package normalize

import (
	"encoding/json"
	"testing"

	"github.com/treasury-tracker/internal/types"
)

func TestClassify_ListUnderKnownKey(t *testing.T) {
	payload := map[string]interface{}{
		"companies": []interface{}{
			map[string]interface{}{"name": "Alpha"},
		},
		"total_holdings": 100.0,
	}

	c := Classify(payload)
	if c.Shape != ShapeListUnderKnownKey {
		t.Fatalf("Expected shape %s, got %s", ShapeListUnderKnownKey, c.Shape)
	}
	if c.Key != "companies" {
		t.Errorf("Expected key companies, got %s", c.Key)
	}
	if len(c.Items) != 1 {
		t.Errorf("Expected 1 item, got %d", len(c.Items))
	}
}

func TestClassify_KeyPriority(t *testing.T) {
	// When multiple known keys hold lists, the earlier key wins
	payload := map[string]interface{}{
		"data":      []interface{}{map[string]interface{}{"name": "FromData"}},
		"companies": []interface{}{map[string]interface{}{"name": "FromCompanies"}},
	}

	c := Classify(payload)
	if c.Key != "companies" {
		t.Errorf("Expected companies to win over data, got %s", c.Key)
	}
}

func TestClassify_KnownKeyNotAList(t *testing.T) {
	// A known key holding a non-list does not match; the wrapper itself
	// becomes a single record
	payload := map[string]interface{}{
		"companies": "none",
	}

	c := Classify(payload)
	if c.Shape != ShapeSingleObject {
		t.Fatalf("Expected shape %s, got %s", ShapeSingleObject, c.Shape)
	}
}

func TestClassify_BareList(t *testing.T) {
	payload := []interface{}{
		map[string]interface{}{"name": "Alpha"},
		map[string]interface{}{"name": "Beta"},
	}

	c := Classify(payload)
	if c.Shape != ShapeBareList {
		t.Fatalf("Expected shape %s, got %s", ShapeBareList, c.Shape)
	}
	if len(c.Items) != 2 {
		t.Errorf("Expected 2 items, got %d", len(c.Items))
	}
}

func TestNormalize_RowCountMatchesList(t *testing.T) {
	raw := json.RawMessage(`{"companies":[{"name":"Alpha"},{"name":"Beta"},{"name":"Gamma"}]}`)

	rows, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(rows))
	}
	if rows[0][types.ColumnName] != "Alpha" {
		t.Errorf("Expected first row Alpha, got %v", rows[0][types.ColumnName])
	}
}

func TestNormalize_NestedObjectsFlatten(t *testing.T) {
	raw := json.RawMessage(`{"companies":[{"name":"Alpha","meta":{"country":"US","listing":{"exchange":"NYSE"}}}]}`)

	rows, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	row := rows[0]
	if row["meta.country"] != "US" {
		t.Errorf("Expected meta.country US, got %v", row["meta.country"])
	}
	if row["meta.listing.exchange"] != "NYSE" {
		t.Errorf("Expected meta.listing.exchange NYSE, got %v", row["meta.listing.exchange"])
	}
	if _, ok := row["meta"]; ok {
		t.Error("Nested object should not survive as a column")
	}
}

func TestNormalize_SingleObject(t *testing.T) {
	raw := json.RawMessage(`{"name":"Solo","total_holdings":42}`)

	rows, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(rows))
	}
	if rows[0][types.ColumnName] != "Solo" {
		t.Errorf("Expected name Solo, got %v", rows[0][types.ColumnName])
	}
}

func TestNormalize_EmptyObject(t *testing.T) {
	rows, err := Normalize(json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Expected 1 empty row, got %d rows", len(rows))
	}
	if len(rows[0]) != 0 {
		t.Errorf("Expected empty row, got %v", rows[0])
	}
}

func TestNormalize_EmptyList(t *testing.T) {
	rows, err := Normalize(json.RawMessage(`{"companies":[]}`))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("Expected 0 rows, got %d", len(rows))
	}
}

func TestNormalize_ScalarListEntries(t *testing.T) {
	rows, err := Normalize(json.RawMessage(`{"items":[1,"two",3.5]}`))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(rows))
	}
	if rows[1]["value"] != "two" {
		t.Errorf("Expected scalar entry under value column, got %v", rows[1]["value"])
	}
}

func TestNormalize_InvalidJSON(t *testing.T) {
	if _, err := Normalize(json.RawMessage(`{not json`)); err == nil {
		t.Fatal("Expected error for undecodable payload")
	}
}
