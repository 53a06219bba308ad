// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rules

import (
	"errors"
	"fmt"

	"k8s.io/apimachinery/pkg/labels"
)

// errWrongShape is wrapped by field helpers when a sub-document exists but
// has an unexpected type.
var errWrongShape = errors.New("unexpected field shape")

// getMap extracts doc[key] as a nested document. Returns (nil, false, nil)
// when the key is absent, and a non-nil error when the key exists but is
// not a document.
func getMap(doc map[string]any, key string) (map[string]any, bool, error) {
	v, ok := doc[key]
	if !ok || v == nil {
		return nil, false, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s is %T, want object", errWrongShape, key, v)
	}
	return m, true, nil
}

// getSlice extracts doc[key] as a list.
func getSlice(doc map[string]any, key string) ([]any, bool, error) {
	v, ok := doc[key]
	if !ok || v == nil {
		return nil, false, nil
	}
	s, ok := v.([]any)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s is %T, want list", errWrongShape, key, v)
	}
	return s, true, nil
}

// getString extracts doc[key] as a string.
func getString(doc map[string]any, key string) (string, bool, error) {
	v, ok := doc[key]
	if !ok || v == nil {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, fmt.Errorf("%w: %s is %T, want string", errWrongShape, key, v)
	}
	return s, true, nil
}

// selectorFrom builds a label selector from the two shapes that appear in
// specs: an equality map ({"app": "web"}) or a selector expression string
// ("app=web,tier in (frontend)"). The string form goes through the
// apimachinery parser; a parse failure is the malformed-selector case the
// failure semantics call out.
func selectorFrom(v any) (labels.Selector, error) {
	switch sel := v.(type) {
	case map[string]any:
		set := make(labels.Set, len(sel))
		for k, raw := range sel {
			s, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("%w: selector value for %q is %T", errWrongShape, k, raw)
			}
			set[k] = s
		}
		if len(set) == 0 {
			return nil, nil
		}
		return set.AsSelector(), nil
	case string:
		if sel == "" {
			return nil, nil
		}
		parsed, err := labels.Parse(sel)
		if err != nil {
			return nil, fmt.Errorf("parse selector %q: %w", sel, err)
		}
		return parsed, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: selector is %T", errWrongShape, v)
	}
}
