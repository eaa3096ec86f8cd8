package cart

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEqualOptions(t *testing.T) {
	cases := []struct {
		name string
		a, b Options
		want bool
	}{
		{name: "both nil", a: nil, b: nil, want: true},
		{name: "nil vs empty", a: nil, b: Options{}, want: true},
		{name: "same pairs", a: Options{"shade": "ruby"}, b: Options{"shade": "ruby"}, want: true},
		{name: "insertion order irrelevant", a: Options{"a": "1", "b": "2"}, b: Options{"b": "2", "a": "1"}, want: true},
		{name: "different value", a: Options{"shade": "ruby"}, b: Options{"shade": "coral"}, want: false},
		{name: "extra key", a: Options{"shade": "ruby"}, b: Options{"shade": "ruby", "size": "m"}, want: false},
		{name: "values are case sensitive", a: Options{"shade": "Ruby"}, b: Options{"shade": "ruby"}, want: false},
		{name: "empty value is not a missing key", a: Options{"shade": ""}, b: Options{}, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, EqualOptions(tc.a, tc.b))
			require.Equal(t, tc.want, EqualOptions(tc.b, tc.a))
		})
	}
}

func TestSameLineRequiresProductAndOptions(t *testing.T) {
	line := LineItem{ID: "l1", ProductID: "lipstick", Quantity: 1, Options: Options{"shade": "ruby"}}

	require.True(t, sameLine(line, "lipstick", Options{"shade": "ruby"}))
	require.False(t, sameLine(line, "mascara", Options{"shade": "ruby"}))
	require.False(t, sameLine(line, "lipstick", nil))
}
