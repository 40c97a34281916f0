package harvest_test

import (
	"testing"

	"github.com/jlicht/krikri/internal/harvest"
	"github.com/stretchr/testify/require"
)

func TestOptions_MergePerCallWins(t *testing.T) {
	base := harvest.Options{"uri": "http://a", "set": []string{"x"}}
	merged := base.Merge(harvest.Options{"set": "y", "from": "2020-01-01"})

	require.Equal(t, "http://a", merged["uri"])
	require.Equal(t, []string{"y"}, merged.Strings("set"))
	require.Equal(t, "2020-01-01", merged.StringOr("from", ""))

	merged.Strings("set")[0] = "mutated"
	require.Equal(t, []string{"x"}, base.Strings("set"))
}

func TestOptions_Strings(t *testing.T) {
	opts := harvest.Options{"a": "one", "b": []any{"x", "y"}, "c": ""}
	require.Equal(t, []string{"one"}, opts.Strings("a"))
	require.Equal(t, []string{"x", "y"}, opts.Strings("b"))
	require.Nil(t, opts.Strings("c"))
	require.Nil(t, opts.Strings("missing"))
}

func TestOptionSchema_Validate(t *testing.T) {
	schema := harvest.BaseSchema().Merge(harvest.OptionSchema{
		"metadata_prefix": {Type: harvest.TypeString, Required: true},
		"set":             {Type: harvest.TypeString, Multiple: true},
		"limit":           {Type: harvest.TypeInt},
	})

	require.NoError(t, schema.Validate(harvest.Options{
		"uri": "http://a", "metadata_prefix": "oai_dc", "set": []any{"a", "b"}, "limit": float64(3),
	}))

	err := schema.Validate(harvest.Options{"uri": "http://a", "set": "dag"})
	require.ErrorIs(t, err, harvest.ErrInvalidOptions)
	var verr *harvest.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, []string{"metadata_prefix is required"}, verr.Problems)

	err = schema.Validate(harvest.Options{
		"uri": 5, "metadata_prefix": []string{"a", "b"}, "limit": 1.5, "bogus": true,
	})
	require.ErrorAs(t, err, &verr)
	require.Equal(t, []string{
		"limit must be an integer",
		"metadata_prefix does not accept multiple values",
		"uri must be a string",
		"bogus is not a recognized option",
	}, verr.Problems)
}
