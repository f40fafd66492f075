package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	var _ Value = Null{}
	var _ Value = String("test")
	var _ Value = Int(42)
	var _ Value = Bool(true)
	var _ Value = Array{String("a"), Int(1)}
	var _ Value = Object{"key": String("value")}
}

func TestObjectSortedKeys(t *testing.T) {
	obj := Object{"b": Int(1), "A": Int(2), "a": Int(3), "aa": Int(4)}
	assert.Equal(t, []string{"A", "a", "aa", "b"}, obj.SortedKeys())
}

func TestUnmarshalValue(t *testing.T) {
	v, err := UnmarshalValue([]byte(`{"a":[1,"x",true,null],"b":{"c":-2}}`))
	require.NoError(t, err)

	want := Object{
		"a": Array{Int(1), String("x"), Bool(true), Null{}},
		"b": Object{"c": Int(-2)},
	}
	assert.True(t, Equal(want, v), "got %#v", v)
}

func TestUnmarshalValue_RejectsFloats(t *testing.T) {
	tests := []string{`1.5`, `{"a":1e3}`, `[2E-1]`}
	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := UnmarshalValue([]byte(input))
			assert.Error(t, err)
		})
	}
}

func TestObjectJSONRoundTrip(t *testing.T) {
	obj := Object{"z": Int(1), "a": Array{String("x")}}

	data, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":["x"],"z":1}`, string(data))

	var back Object
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, Equal(obj, back))
}

func TestObjectUnmarshalJSON_NotAnObject(t *testing.T) {
	var obj Object
	err := json.Unmarshal([]byte(`[1]`), &obj)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected object, got array")
}

func TestClone_IsDeep(t *testing.T) {
	orig := Object{"inner": Object{"v": Int(1)}, "list": Array{Int(1)}}
	cp := orig.Clone()

	cp["inner"].(Object)["v"] = Int(2)
	cp["list"].(Array)[0] = Int(2)

	assert.Equal(t, Int(1), orig["inner"].(Object)["v"])
	assert.Equal(t, Int(1), orig["list"].(Array)[0])
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"same scalars", Int(1), Int(1), true},
		{"different kinds", Int(1), String("1"), false},
		{"objects", Object{"a": Int(1)}, Object{"a": Int(1)}, true},
		{"object missing key", Object{"a": Int(1)}, Object{"b": Int(1)}, false},
		{"arrays order matters", Array{Int(1), Int(2)}, Array{Int(2), Int(1)}, false},
		{"null", Null{}, Null{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

func TestContains(t *testing.T) {
	got := Object{
		"A": String(""),
		"B": Object{"1": Object{"C": String("c1"), "D": String("d1")}},
	}

	assert.True(t, Contains(got, Object{"A": String("")}))
	assert.True(t, Contains(got, Object{"B": Object{"1": Object{"C": String("c1")}}}))
	assert.False(t, Contains(got, Object{"B": Object{"2": Object{}}}))
	assert.False(t, Contains(got, Object{"A": String("a")}))
}
