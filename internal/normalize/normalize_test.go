package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
)

func TestText(t *testing.T) {
	tests := []struct {
		raw      string
		wantText string
		wantKey  string
	}{
		{"  INV-100 ", "INV-100", "inv-100"},
		{"Acme\t\tCorp\nLtd", "Acme Corp Ltd", "acme corp ltd"},
		{"ＩＮＶ－１００", "INV-100", "inv-100"}, // full-width forms fold under NFKC
		{"Straße", "Straße", "strasse"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			v, err := Text(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, constants.FieldKindText, v.Kind)
			assert.Equal(t, tt.wantText, v.Text)
			assert.Equal(t, tt.wantKey, v.Key)
			assert.Equal(t, tt.wantKey, v.Canonical())
		})
	}
}

func TestText_EmptyIsFailure(t *testing.T) {
	_, err := Text(" \t\n")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrNormalization)
	assert.Equal(t, "", Key("   "))
}

func TestKey_DistinguishesLookalikes(t *testing.T) {
	assert.Equal(t, Key("INV-100"), Key(" inv-100"))
	assert.NotEqual(t, Key("INV-100"), Key("INV-l00"))
}

func TestDate(t *testing.T) {
	want := time.Date(2024, time.March, 14, 0, 0, 0, 0, time.UTC)
	inputs := []string{
		"2024-03-14",
		"03/14/2024",
		"3/14/2024",
		"03/14/24",
		"March 14, 2024",
		"Mar 14 2024",
		"14 March 2024",
		"14-Mar-2024",
		"Date: 03/14/2024",
		"March 14th, 2024.",
	}
	for _, raw := range inputs {
		t.Run(raw, func(t *testing.T) {
			v, err := Normalize(constants.FieldKindDate, raw)
			require.NoError(t, err)
			assert.True(t, v.Date.Equal(want), "got %s", v.Date)
			assert.Equal(t, "2024-03-14", v.Canonical())
		})
	}
}

func TestDate_Failures(t *testing.T) {
	for _, raw := range []string{"", "13/45/2024", "sometime soon", "Date:"} {
		t.Run(raw, func(t *testing.T) {
			_, err := Normalize(constants.FieldKindDate, raw)
			var nerr *Error
			require.ErrorAs(t, err, &nerr)
			assert.Equal(t, constants.FieldKindDate, nerr.Kind)
		})
	}
}

func TestDate_CustomLayouts(t *testing.T) {
	n := New([]string{"02.01.2006"})
	v, err := n.Normalize(constants.FieldKindDate, "14.03.2024")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-14", v.Canonical())

	_, err = n.Normalize(constants.FieldKindDate, "2024-03-14")
	assert.Error(t, err, "custom layouts replace the defaults")
}

func TestAmount(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"1234.50", "1234.50"},
		{"$1,234.50", "1234.50"},
		{"USD 99", "99.00"},
		{"€ 1.234,56", "1234.56"},
		{"12,50", "12.50"},
		{"1,234", "1234.00"},
		{"1,234,567", "1234567.00"},
		{"1.234.567", "1234567.00"},
		{"Total: £0.99", "0.99"},
		{"0", "0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			v, err := Amount(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.Canonical())
			assert.False(t, v.IsZero())
		})
	}
}

func TestAmount_Failures(t *testing.T) {
	tests := []struct {
		raw    string
		reason string
	}{
		{"", "empty"},
		{"$", "empty"},
		{"-12.00", "negative amount"},
		{"(12.00)", "negative amount"},
		{"12.00-", "negative amount"},
		{"twelve", "not numeric"},
		{"1,2,3", "not numeric"},
		{"12.5O", "not numeric"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			_, err := Amount(tt.raw)
			var nerr *Error
			require.ErrorAs(t, err, &nerr)
			assert.Equal(t, tt.reason, nerr.Reason)
			assert.ErrorIs(t, err, common.ErrNormalization)
		})
	}
}

func TestValueEqual(t *testing.T) {
	a, _ := Amount("$1,000.00")
	b, _ := Amount("1000")
	assert.True(t, a.Equal(b))

	d, _ := Normalize(constants.FieldKindDate, "2024-01-01")
	assert.False(t, a.Equal(d))
}

func TestNormalize_UnknownKind(t *testing.T) {
	_, err := Normalize(constants.FieldKind("currency"), "USD")
	assert.ErrorIs(t, err, common.ErrNormalization)
}
