package validate

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeJSON_Malformed(t *testing.T) {
	_, err := SanitizeJSON([]byte(`{"name": `), Object{"name": String})
	require.Error(t, err)

	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, KindMalformedJSON, verr.Kind)
	assert.Equal(t, "invalid JSON format", verr.Error())
}

func TestSanitizeJSON_StripsUndeclaredKeys(t *testing.T) {
	template := Object{
		"name": String,
		"age":  Int,
	}

	out, err := SanitizeJSON([]byte(`{"name":"alice","age":30,"extra":"x","nested":{"a":1}}`), template)
	require.NoError(t, err)

	obj, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Len(t, obj, 2)
	assert.Equal(t, "alice", obj["name"])
	assert.Contains(t, obj, "age")
	assert.NotContains(t, obj, "extra")
	assert.NotContains(t, obj, "nested")
}

func TestSanitizeJSON_MissingKey(t *testing.T) {
	_, err := SanitizeJSON([]byte(`{"name":"alice"}`), Object{
		"name": String,
		"age":  Int,
	})
	require.Error(t, err)

	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, KindMissingKey, verr.Kind)
	assert.Equal(t, "age", verr.Key)
	assert.Equal(t, "missing key age", verr.Error())
}

func TestSanitizeJSON_TypeMismatchNamesKey(t *testing.T) {
	_, err := SanitizeJSON([]byte(`{"name":42}`), Object{"name": String})
	require.Error(t, err)

	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, KindTypeMismatch, verr.Kind)
	assert.Equal(t, "name", verr.Key)
}

func TestSanitize_Kinds(t *testing.T) {
	tests := []struct {
		name     string
		template any
		value    any
		valid    bool
	}{
		{"string accepts string", String, "hello", true},
		{"string rejects number", String, json.Number("3"), false},
		{"int accepts number", Int, json.Number("42"), true},
		{"int accepts float number", Int, json.Number("3.5"), true},
		{"int accepts integral string", Int, "123", true},
		{"int rejects decimal string", Int, "3.5", false},
		{"int accepts bool", Int, true, true},
		{"int rejects word", Int, "abc", false},
		{"bool accepts literal true", Bool, "true", true},
		{"bool accepts literal false", Bool, "false", true},
		{"bool rejects native bool", Bool, true, false},
		{"bool rejects other string", Bool, "yes", false},
		{"skip accepts anything", Skip, map[string]any{"a": json.Number("1")}, true},
		{"nil accepted for string", String, nil, true},
		{"nil accepted for int", Int, nil, true},
		{"nil accepted for bool", Bool, nil, true},
		{"nil accepted for pattern", Pattern(`[a-z]+`), nil, true},
		{"nil accepted for object", Object{"a": String}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Sanitize(map[string]any{"k": tt.value}, Object{"k": tt.template})
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestSanitize_Patterns(t *testing.T) {
	tests := []struct {
		name    string
		pattern Pattern
		value   any
		valid   bool
	}{
		{"uuid match", UUIDPattern, "f0c9e4f0-27c4-4eb3-8f3a-2a41d12f5a9b", true},
		{"uuid mismatch", UUIDPattern, "not-a-uuid", false},
		{"email match", EmailPattern, "user@example.org", true},
		{"email mismatch", EmailPattern, "user@", false},
		{"number coerced to text", Pattern(`\d+`), json.Number("42"), true},
		{"bool coerced to text", Pattern(`true|false`), true, true},
		{"anchored at start", Pattern(`abc`), "xxabc", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Sanitize(map[string]any{"k": tt.value}, Object{"k": tt.pattern})
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestSanitize_Lists(t *testing.T) {
	template := Object{"items": List{Of: Int}}

	t.Run("empty list valid", func(t *testing.T) {
		out, err := Sanitize(map[string]any{"items": []any{}}, template)
		require.NoError(t, err)
		assert.Empty(t, out.(map[string]any)["items"])
	})

	t.Run("all elements checked", func(t *testing.T) {
		_, err := Sanitize(map[string]any{
			"items": []any{json.Number("1"), "oops"},
		}, template)
		require.Error(t, err)

		var verr *Error
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "items", verr.Key)
	})

	t.Run("object elements sanitized", func(t *testing.T) {
		out, err := Sanitize(map[string]any{
			"users": []any{
				map[string]any{"name": "a", "junk": "x"},
			},
		}, Object{"users": List{Of: Object{"name": String}}})
		require.NoError(t, err)

		users := out.(map[string]any)["users"].([]any)
		require.Len(t, users, 1)
		assert.Equal(t, map[string]any{"name": "a"}, users[0])
	})
}

func TestSanitize_NestedObjects(t *testing.T) {
	template := Object{
		"profile": Object{
			"id":    UUIDPattern,
			"email": EmailPattern,
		},
	}

	out, err := Sanitize(map[string]any{
		"profile": map[string]any{
			"id":      "f0c9e4f0-27c4-4eb3-8f3a-2a41d12f5a9b",
			"email":   "a@b.org",
			"padding": "stripped",
		},
	}, template)
	require.NoError(t, err)

	profile := out.(map[string]any)["profile"].(map[string]any)
	assert.Len(t, profile, 2)
	assert.NotContains(t, profile, "padding")
}

func TestSanitize_Idempotent(t *testing.T) {
	template := Object{
		"name":  String,
		"age":   Int,
		"tags":  List{Of: String},
		"flags": Object{"active": Bool},
	}

	first, err := SanitizeJSON([]byte(`{
		"name": "alice",
		"age": 30,
		"tags": ["a", "b"],
		"flags": {"active": "true", "extra": 1},
		"garbage": [1, 2]
	}`), template)
	require.NoError(t, err)

	second, err := Sanitize(first, template)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSanitize_InputNotMutated(t *testing.T) {
	payload := map[string]any{
		"name":  "alice",
		"extra": "keep me",
	}

	out, err := Sanitize(payload, Object{"name": String})
	require.NoError(t, err)

	assert.Contains(t, payload, "extra")
	assert.NotContains(t, out.(map[string]any), "extra")
}

func TestSanitize_TopLevel(t *testing.T) {
	t.Run("list template", func(t *testing.T) {
		out, err := SanitizeJSON([]byte(`[{"id":"1"},{"id":"2"}]`), List{Of: Object{"id": String}})
		require.NoError(t, err)
		assert.Len(t, out.([]any), 2)
	})

	t.Run("object payload against list template", func(t *testing.T) {
		_, err := SanitizeJSON([]byte(`{"id":"1"}`), List{Of: String})
		assert.Error(t, err)
	})

	t.Run("list payload against object template", func(t *testing.T) {
		_, err := SanitizeJSON([]byte(`[]`), Object{"id": String})
		assert.Error(t, err)
	})
}
