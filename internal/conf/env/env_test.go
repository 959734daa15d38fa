package env

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type myDuration time.Duration

func (d *myDuration) UnmarshalJSON(b []byte) error {
	var in string
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}

	du, err := time.ParseDuration(in)
	if err != nil {
		return err
	}
	*d = myDuration(du)

	return nil
}

// UnmarshalEnv implements env.Unmarshaler.
func (d *myDuration) UnmarshalEnv(_ string, v string) error {
	return d.UnmarshalJSON([]byte(`"` + v + `"`))
}

type subStruct struct {
	MyParam int `json:"myParam"`
}

type testStruct struct {
	MyString    string     `json:"myString"`
	MyInt       int        `json:"myInt"`
	MyUint      uint       `json:"myUint"`
	MyFloat     float64    `json:"myFloat"`
	MyBool      bool       `json:"myBool"`
	MyDuration  myDuration `json:"myDuration"`
	MySlice     []string   `json:"mySlice"`
	MySubStruct subStruct  `json:"mySubStruct"`
	Untouched   string     `json:"untouched"`
	private     int
}

func TestLoad(t *testing.T) {
	env := map[string]string{
		"MYPREFIX_MYSTRING":            "testcontent",
		"MYPREFIX_MYINT":               "123",
		"MYPREFIX_MYUINT":              "456",
		"MYPREFIX_MYFLOAT":             "15.2",
		"MYPREFIX_MYBOOL":              "yes",
		"MYPREFIX_MYDURATION":          "22s",
		"MYPREFIX_MYSLICE":             "a,b",
		"MYPREFIX_MYSUBSTRUCT_MYPARAM": "7",
		"OTHERPREFIX_UNTOUCHED":        "x",
	}

	s := testStruct{
		Untouched: "original",
	}

	err := loadWithEnv(env, "MYPREFIX", &s)
	require.NoError(t, err)

	require.Equal(t, testStruct{
		MyString:    "testcontent",
		MyInt:       123,
		MyUint:      456,
		MyFloat:     15.2,
		MyBool:      true,
		MyDuration:  myDuration(22 * time.Second),
		MySlice:     []string{"a", "b"},
		MySubStruct: subStruct{MyParam: 7},
		Untouched:   "original",
	}, s)
}

func TestLoadErrors(t *testing.T) {
	for _, ca := range []struct {
		name string
		key  string
		val  string
		err  string
	}{
		{
			"int",
			"MYPREFIX_MYINT",
			"abc",
			`MYPREFIX_MYINT: strconv.ParseInt: parsing "abc": invalid syntax`,
		},
		{
			"bool",
			"MYPREFIX_MYBOOL",
			"maybe",
			"MYPREFIX_MYBOOL: invalid value 'maybe'",
		},
		{
			"unmarshaler",
			"MYPREFIX_MYDURATION",
			"forever",
			`MYPREFIX_MYDURATION: time: invalid duration "forever"`,
		},
	} {
		t.Run(ca.name, func(t *testing.T) {
			var s testStruct
			err := loadWithEnv(map[string]string{ca.key: ca.val}, "MYPREFIX", &s)
			require.EqualError(t, err, ca.err)
		})
	}
}
