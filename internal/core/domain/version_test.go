package domain_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/connres/internal/core/domain"
	"go.trai.ch/zerr"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"1.2.3", "1.2.3", false},
		{" 1.2.3 ", "1.2.3", false},
		{"1.2.3-rc.1", "1.2.3-rc.1", false},
		{"1.2.3+build.7", "1.2.3+build.7", false},
		{"1.2", "", true},
		{"v1.2.3", "", true},
		{"01.2.3", "", true},
		{"", "", true},
		{"latest", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, err := domain.ParseVersion(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, domain.ErrInvalidVersionSyntax))

				var zErr *zerr.Error
				require.ErrorAs(t, err, &zErr)
				assert.Equal(t, tt.input, zErr.Metadata()["input"])
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.String())
		})
	}
}

func TestVersion_Compare(t *testing.T) {
	v := domain.MustParseVersion

	assert.Equal(t, -1, v("1.0.0").Compare(v("1.0.1")))
	assert.Equal(t, 1, v("2.0.0").Compare(v("1.9.9")))
	assert.Equal(t, 0, v("1.0.0").Compare(v("1.0.0")))
	assert.Equal(t, -1, v("1.0.0-rc.1").Compare(v("1.0.0")), "pre-release sorts before its release")
	assert.Equal(t, -1, v("1.0.0-alpha").Compare(v("1.0.0-beta")))
	assert.True(t, v("1.0.0+a").Equal(v("1.0.0+b")), "build metadata has no precedence")

	var zero domain.Version
	assert.True(t, zero.IsZero())
	assert.Equal(t, -1, zero.Compare(v("0.0.1")))
	assert.Equal(t, 1, v("0.0.1").Compare(zero))
}

func TestVersion_TextRoundTrip(t *testing.T) {
	var v domain.Version
	require.NoError(t, v.UnmarshalText([]byte("3.1.4-beta.2")))
	text, err := v.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "3.1.4-beta.2", string(text))
	assert.True(t, v.IsPrerelease())

	require.ErrorIs(t, v.UnmarshalText([]byte("3.1")), domain.ErrInvalidVersionSyntax)
}

func TestParseConstraint(t *testing.T) {
	tests := []struct {
		constraint string
		version    string
		want       bool
	}{
		{"1.2.3", "1.2.3", true},
		{"=1.2.3", "1.2.4", false},
		{">=1.0.0 <2.0.0", "1.5.0", true},
		{">=1.0.0 <2.0.0", "2.0.0", false},
		{">=1.0.0, <2.0.0", "1.9.9", true},
		{"^1.2.0", "1.9.0", true},
		{"^1.2.0", "2.0.0", false},
		{"~1.4.0", "1.4.9", true},
		{"~1.4.0", "1.5.0", false},
		{"1.2.x", "1.2.7", true},
		{"*", "9.9.9", true},
		{"", "0.1.0", true},
		{"!=1.0.0", "1.0.0", false},
		{"1.0.0 - 1.4.0", "1.3.0", true},
		{"^1.0.0 || ^3.0.0", "3.2.0", true},
		{"^1.0.0", "1.1.0-beta.1", true},
		{"^1.0.0", "1.0.0-rc.1", false},
		{"^1.0.0", "2.0.0-rc.1", false},
		{">=1.0.0", "1.0.0-rc.1", false},
		{"*", "0.3.0-alpha", true},
		{"~1.4.0", "1.4.2-beta.1", true},
		{">=1.1.0-beta.1", "1.1.0-beta.2", true},
	}

	for _, tt := range tests {
		t.Run(tt.constraint+" "+tt.version, func(t *testing.T) {
			c, err := domain.ParseConstraint(tt.constraint)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Check(domain.MustParseVersion(tt.version)))
		})
	}
}

func TestParseConstraint_Invalid(t *testing.T) {
	for _, input := range []string{">>1.0.0", "^one", "not-a-range"} {
		t.Run(input, func(t *testing.T) {
			_, err := domain.ParseConstraint(input)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidConstraintSyntax)

			var zErr *zerr.Error
			require.ErrorAs(t, err, &zErr)
			assert.Equal(t, input, zErr.Metadata()["input"])
		})
	}
}

func TestConstraint_String(t *testing.T) {
	assert.Equal(t, "^1.0.0", domain.MustParseConstraint(" ^1.0.0 ").String())
	assert.Equal(t, domain.AnyVersion, domain.MustParseConstraint("").String())
}

func TestSatisfiesAll(t *testing.T) {
	v := domain.MustParseVersion("1.5.0")

	assert.True(t, domain.SatisfiesAll(v, nil), "empty list is vacuously true")
	assert.True(t, domain.SatisfiesAll(v, []domain.Constraint{
		domain.MustParseConstraint("^1.0.0"),
		domain.MustParseConstraint("<1.6.0"),
	}))
	assert.False(t, domain.SatisfiesAll(v, []domain.Constraint{
		domain.MustParseConstraint("^1.0.0"),
		domain.MustParseConstraint("^2.0.0"),
	}))
}
