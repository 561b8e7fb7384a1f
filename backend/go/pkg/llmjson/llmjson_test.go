package llmjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[string]interface{}
	}{
		{"raw object", `{"summary":"Paris trip."}`, map[string]interface{}{"summary": "Paris trip."}},
		{"fenced json", "Sure!\n```json\n{\"category\": \"Travel\"}\n```\nDone.", map[string]interface{}{"category": "Travel"}},
		{"fenced uppercase tag", "```JSON\n{\"a\": 1}```", map[string]interface{}{"a": float64(1)}},
		{"bare fence", "```\n{\"a\": \"b\"}\n```", map[string]interface{}{"a": "b"}},
		{"embedded braces", `The answer is {"tags": ["x"]} as requested.`, map[string]interface{}{"tags": []interface{}{"x"}}},
		{"prose", "I think this is about travel.", map[string]interface{}{}},
		{"empty", "", map[string]interface{}{}},
		{"array is not an object", `["a","b"]`, map[string]interface{}{}},
		{"broken fence", "```json\n{\"a\": \n```", map[string]interface{}{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.in)
			assert.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_SkipsUnparseableFenceAndUsesNext(t *testing.T) {
	in := "```python\nprint(1)\n```\n```json\n{\"ok\": true}\n```"
	assert.Equal(t, map[string]interface{}{"ok": true}, Parse(in))
}

func TestStringHelpers(t *testing.T) {
	obj := Parse(`{"name":"Travel","n":3,"tags":["a",1,"b"],"csv":"x,y"}`)

	assert.Equal(t, "Travel", String(obj, "name"))
	assert.Equal(t, "", String(obj, "n"))
	assert.Equal(t, "", String(obj, "missing"))
	assert.Equal(t, []string{"a", "b"}, Strings(obj, "tags"))
	assert.Equal(t, []string{"x", "y"}, Strings(obj, "csv"))
	assert.Nil(t, Strings(obj, "missing"))
}
