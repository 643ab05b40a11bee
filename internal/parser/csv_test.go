package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/gridinsight/internal/apperrors"
)

// metadata is the six line preamble the exports carry before the header
const metadata = `Name,Jane Doe
Address,"123 Main St, Springfield"
Account Number,1234567890

Service,Service 1
Rate,E-TOU-C
`

func export(rows ...string) string {
	return metadata + "TYPE,DATE,START TIME,END TIME,USAGE (kWh),COST,NOTES\n" + strings.Join(rows, "\n") + "\n"
}

func TestParseWellFormed(t *testing.T) {
	raw := export(
		"Electric usage,2024-01-01,00:00,00:59,1.25,$0.31,",
		"Electric usage,2024-01-01,01:00,01:59,0.75,$0.19,",
		"Electric usage,2024-01-02,13:00,13:59, 2.50 ,0.62,",
	)

	records, err := ParseString(raw, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), records[0].Timestamp)
	assert.Equal(t, 1.25, records[0].KWh)
	assert.Equal(t, 0.31, records[0].Cost)
	assert.Equal(t, time.Date(2024, 1, 2, 13, 0, 0, 0, time.UTC), records[2].Timestamp)
	assert.Equal(t, 2.5, records[2].KWh)
	assert.Equal(t, 0.62, records[2].Cost)
}

func TestParseNormalizesHeaders(t *testing.T) {
	raw := metadata + " type , date ,Start Time ,END TIME, usage (kwh) , Cost \n" +
		"Electric usage,2024-03-05,07:00,07:59,1.0,$0.20\n"

	records, err := ParseString(raw, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 7, records[0].Timestamp.Hour())
}

func TestParseNegativeCost(t *testing.T) {
	records, err := ParseString(export("Electric usage,2024-01-01,00:00,00:59,0.5,-$0.10,credit"), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, -0.10, records[0].Cost)
}

func TestParseRejectsEmptyFieldRows(t *testing.T) {
	raw := export(
		"Electric usage,2024-01-01,00:00,00:59,1,$1,",
		",,,,,,",
		"Electric usage,2024-01-01,01:00,01:59,2,$2,",
	)

	records, err := ParseString(raw, DefaultOptions())
	require.Error(t, err)
	assert.Nil(t, records)
	assert.ErrorIs(t, err, apperrors.ErrParse)

	var parseErr *apperrors.Error
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, 2, parseErr.Row)
	assert.Equal(t, "DATE+START TIME", parseErr.Column)
}

func TestParseIgnoresEmptyLines(t *testing.T) {
	raw := export(
		"Electric usage,2024-01-01,00:00,00:59,1,$1,",
		"",
		"Electric usage,2024-01-01,01:00,01:59,2,$2,",
	)

	records, err := ParseString(raw, DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestParseFailures(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		kind   error
		column string
		row    int
	}{
		{
			name: "missing cost column",
			raw:  metadata + "TYPE,DATE,START TIME,END TIME,USAGE (kWh)\nElectric usage,2024-01-01,00:00,00:59,1\n",
			kind: apperrors.ErrSchema,
		},
		{
			name:   "malformed usage",
			raw:    export("Electric usage,2024-01-01,00:00,00:59,1,$1,", "Electric usage,2024-01-01,01:00,01:59,abc,$1,"),
			kind:   apperrors.ErrParse,
			column: "USAGE (kWh)",
			row:    2,
		},
		{
			name:   "negative usage",
			raw:    export("Electric usage,2024-01-01,00:00,00:59,-1,$1,"),
			kind:   apperrors.ErrParse,
			column: "USAGE (kWh)",
			row:    1,
		},
		{
			name:   "non-finite usage",
			raw:    export("Electric usage,2024-01-01,00:00,00:59,NaN,$1,"),
			kind:   apperrors.ErrParse,
			column: "USAGE (kWh)",
			row:    1,
		},
		{
			name:   "malformed cost",
			raw:    export("Electric usage,2024-01-01,00:00,00:59,1,USD 1,"),
			kind:   apperrors.ErrParse,
			column: "COST",
			row:    1,
		},
		{
			name:   "bad date",
			raw:    export("Electric usage,01/02/2024,00:00,00:59,1,$1,"),
			kind:   apperrors.ErrParse,
			column: "DATE+START TIME",
			row:    1,
		},
		{
			name: "short row",
			raw:  export("Electric usage,2024-01-01,00:00"),
			kind: apperrors.ErrParse,
		},
		{
			name: "header only",
			raw:  export(),
			kind: apperrors.ErrEmptyDataset,
		},
		{
			name: "metadata only",
			raw:  "Name,Jane Doe\nAddress,Somewhere\n",
			kind: apperrors.ErrEmptyDataset,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := ParseString(tt.raw, DefaultOptions())
			require.Error(t, err)
			assert.Nil(t, records)
			assert.ErrorIs(t, err, tt.kind)

			if tt.column != "" {
				var perr *apperrors.Error
				require.ErrorAs(t, err, &perr)
				assert.Equal(t, tt.column, perr.Column)
				assert.Equal(t, tt.row, perr.Row)
			}
		})
	}
}

func TestParseExtraMetadataRows(t *testing.T) {
	raw := "Generated,2024-02-01\nUtility,PG&E\n" +
		export("Electric usage,2024-01-01,00:00,00:59,1,$1,", "Electric usage,2024-01-01,01:00,01:59,n/a,$1,")

	_, err := ParseString(raw, DefaultOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrParse)
}

func TestParseHeaderSearchDisabled(t *testing.T) {
	opts := DefaultOptions()
	opts.HeaderSearchRows = 0

	raw := "Generated,2024-02-01\n" + export("Electric usage,2024-01-01,00:00,00:59,1,$1,")

	_, err := ParseString(raw, opts)
	assert.ErrorIs(t, err, apperrors.ErrSchema)
}

func TestParseCustomColumns(t *testing.T) {
	opts := DefaultOptions()
	opts.SkipRows = 0
	opts.UsageColumn = "USAGE"

	raw := "DATE,START TIME,USAGE,COST\n2024-05-01,10:00,3.5,$1.05\n"

	records, err := ParseString(raw, opts)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 3.5, records[0].KWh)
}
