package yamlwrapper

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type testStruct struct {
	MyString string         `json:"myString"`
	MyInt    int            `json:"myInt"`
	MyBool   bool           `json:"myBool"`
	MyMap    map[string]int `json:"myMap"`
	MySlice  []string       `json:"mySlice"`
}

func TestUnmarshal(t *testing.T) {
	var dest testStruct
	err := Unmarshal([]byte("myString: test\n"+
		"myInt: 123\n"+
		"myBool: yes\n"+
		"myMap:\n"+
		"  a: 1\n"+
		"mySlice: [x, y]\n"), &dest)
	require.NoError(t, err)

	require.Equal(t, testStruct{
		MyString: "test",
		MyInt:    123,
		MyBool:   true,
		MyMap:    map[string]int{"a": 1},
		MySlice:  []string{"x", "y"},
	}, dest)
}

func TestUnmarshalEmpty(t *testing.T) {
	dest := testStruct{MyInt: 5}
	err := Unmarshal([]byte(""), &dest)
	require.NoError(t, err)
	require.Equal(t, 5, dest.MyInt)
}

func TestUnmarshalErrors(t *testing.T) {
	for _, ca := range []struct {
		name string
		yaml string
	}{
		{
			"duplicate key",
			"myInt: 1\nmyInt: 2\n",
		},
		{
			"unknown field",
			"myUnknown: 1\n",
		},
		{
			"integer key",
			"myMap:\n  1: 1\n",
		},
		{
			"wrong type",
			"myInt: abc\n",
		},
	} {
		t.Run(ca.name, func(t *testing.T) {
			var dest testStruct
			err := Unmarshal([]byte(ca.yaml), &dest)
			require.Error(t, err)
		})
	}
}
