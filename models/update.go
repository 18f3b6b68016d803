package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Fields accepted by a partial update. id and created_at are set once at
// creation and are never writable.
var updatableFields = map[string]bool{
	"title":          true,
	"summary":        true,
	"flash_cards":    true,
	"quiz":           true,
	"study_schedule": true,
	"topics":         true,
	"study_tips":     true,
	"filename":       true,
	"source_key":     true,
	"warnings":       true,
}

var immutableFields = map[string]bool{
	"id":         true,
	"created_at": true,
}

// ApplyUpdates merges the top-level fields in updates into g and returns the
// result. Fields not present in updates keep their stored value.
func ApplyUpdates(g StudyGuide, updates map[string]any) (StudyGuide, error) {
	if len(updates) == 0 {
		return g, fmt.Errorf("%w: empty update", ErrInvalidGuide)
	}

	var rejected []string
	for key := range updates {
		switch {
		case immutableFields[key]:
			rejected = append(rejected, key+" is immutable")
		case !updatableFields[key]:
			rejected = append(rejected, "unknown field "+key)
		}
	}
	if len(rejected) > 0 {
		sort.Strings(rejected)
		return g, fmt.Errorf("%w: %s", ErrInvalidGuide, strings.Join(rejected, "; "))
	}

	current, err := json.Marshal(g)
	if err != nil {
		return g, fmt.Errorf("encode guide: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(current, &doc); err != nil {
		return g, fmt.Errorf("decode guide: %w", err)
	}
	for key, value := range updates {
		doc[key] = value
	}

	merged, err := json.Marshal(doc)
	if err != nil {
		return g, fmt.Errorf("%w: encode update: %v", ErrInvalidGuide, err)
	}
	var out StudyGuide
	if err := json.Unmarshal(merged, &out); err != nil {
		return g, fmt.Errorf("%w: %v", ErrInvalidGuide, err)
	}
	out.ID = g.ID
	out.CreatedAt = g.CreatedAt

	if err := out.Validate(); err != nil {
		return g, err
	}
	return out, nil
}
