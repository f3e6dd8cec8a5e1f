package validation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		err  bool
	}{
		{raw: "10", want: "10"},
		{raw: "10.00", want: "10"},
		{raw: " 19.99 ", want: "19.99"},
		{raw: "0", want: "0"},
		{raw: "-5", err: true},
		{raw: "1.234", err: true},
		{raw: "abc", err: true},
		{raw: "", err: true},
		{raw: "1000000000000000000", err: true},
		{raw: "999999999999999999.99", want: "999999999999999999.99"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseMoney(tt.raw)
			if tt.err {
				assert.ErrorIs(t, err, ErrInvalidMoney)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseOptionalMoney(t *testing.T) {
	got, err := ParseOptionalMoney("")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = ParseOptionalMoney(json.Number("15.00"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "15", got.String())
}

func TestParseInventory(t *testing.T) {
	got, err := ParseInventory("")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = ParseInventory("-1")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), *got)

	_, err = ParseInventory("2.5")
	assert.ErrorIs(t, err, ErrInvalidInventory)
}

type sample struct {
	ID        string      `json:"id" validate:"omitempty,snowflake"`
	Title     string      `json:"title" validate:"required,max=5"`
	Price     json.Number `json:"price" validate:"required,money"`
	Inventory json.Number `json:"inventory" validate:"omitempty,inventory"`
}

func TestStructReportsEveryField(t *testing.T) {
	v := New()

	errs := v.Struct(sample{ID: "x", Title: "too long", Price: "-5", Inventory: "many"}, "edits[0].")

	fields := map[string]string{}
	for _, fe := range errs {
		fields[fe.Field] = fe.Code
		assert.NotEmpty(t, fe.Message)
	}
	assert.Equal(t, map[string]string{
		"edits[0].id":        "snowflake",
		"edits[0].title":     "max",
		"edits[0].price":     "money",
		"edits[0].inventory": "inventory",
	}, fields)
}

func TestStructAcceptsValidInput(t *testing.T) {
	v := New()
	assert.Empty(t, v.Struct(sample{Title: "Tee", Price: "5.00", Inventory: "-1"}, ""))
}
