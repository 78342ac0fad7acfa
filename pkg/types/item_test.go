package types

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestItemInputValidate(t *testing.T) {
	tests := []struct {
		name      string
		input     ItemInput
		wantField string
		wantErr   error
	}{
		{
			name:  "minimal input is valid",
			input: ItemInput{Name: "Laptop"},
		},
		{
			name:      "blank name rejected",
			input:     ItemInput{Name: "   "},
			wantField: "name",
			wantErr:   ErrInvalidName,
		},
		{
			name:      "negative quantity rejected",
			input:     ItemInput{Name: "Chair", Quantity: -2},
			wantField: "quantity",
			wantErr:   ErrInvalidQuantity,
		},
		{
			name:      "unknown status rejected",
			input:     ItemInput{Name: "Chair", Status: "lost"},
			wantField: "status",
			wantErr:   ErrInvalidStatus,
		},
		{
			name:      "negative price rejected",
			input:     ItemInput{Name: "Chair", PurchasePrice: ptr(-1.0)},
			wantField: "purchasePrice",
			wantErr:   ErrInvalidPrice,
		},
		{
			name:      "malformed purchase date rejected",
			input:     ItemInput{Name: "Chair", PurchaseDate: ptr("03/01/2024")},
			wantField: "purchaseDate",
			wantErr:   ErrInvalidDate,
		},
		{
			name:      "nested custom field rejected",
			input:     ItemInput{Name: "Chair", CustomFields: map[string]any{"dims": map[string]any{"w": 1}}},
			wantField: "customFields.dims",
			wantErr:   ErrInvalidCustomField,
		},
		{
			name: "scalar custom fields accepted",
			input: ItemInput{Name: "Chair", CustomFields: map[string]any{
				"serial": "X1", "warrantyMonths": 24.0, "refurbished": false,
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrValidation)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
}

func TestItemInputWithDefaults(t *testing.T) {
	in := ItemInput{Name: "Lamp"}.WithDefaults()
	assert.Equal(t, DefaultQuantity, in.Quantity)
	assert.Equal(t, ItemStatusActive, in.Status)

	in = ItemInput{Name: "Lamp", Quantity: 3, Status: ItemStatusInactive}.WithDefaults()
	assert.Equal(t, 3, in.Quantity)
	assert.Equal(t, ItemStatusInactive, in.Status)
}

func TestItemPatchValidate(t *testing.T) {
	assert.NoError(t, ItemPatch{}.Validate())
	assert.NoError(t, ItemPatch{PurchasePrice: Null[float64]()}.Validate())
	assert.ErrorIs(t, ItemPatch{Quantity: ptr(0)}.Validate(), ErrInvalidQuantity)
	assert.ErrorIs(t, ItemPatch{Name: ptr("")}.Validate(), ErrInvalidName)
	assert.ErrorIs(t, ItemPatch{WarrantyExpiry: Set("2024-13-01")}.Validate(), ErrInvalidDate)
	status := ItemStatus("broken")
	assert.ErrorIs(t, ItemPatch{Status: &status}.Validate(), ErrInvalidStatus)
}

func TestItemPatchJSON(t *testing.T) {
	var p ItemPatch
	require.NoError(t, json.Unmarshal([]byte(`{"name":"Desk","categoryId":null,"purchasePrice":12.5}`), &p))

	require.NotNil(t, p.Name)
	assert.Equal(t, "Desk", *p.Name)
	assert.True(t, p.CategoryID.IsSet())
	assert.Nil(t, p.CategoryID.Ptr())
	require.NotNil(t, p.PurchasePrice.Ptr())
	assert.Equal(t, 12.5, *p.PurchasePrice.Ptr())
	assert.False(t, p.PurchaseDate.IsSet())
	assert.False(t, p.CustomFields.IsSet())
}

func TestValidDate(t *testing.T) {
	assert.True(t, ValidDate("2024-02-29"))
	assert.False(t, ValidDate("2023-02-29"))
	assert.False(t, ValidDate(""))
	assert.False(t, ValidDate("2024-1-5"))
}
