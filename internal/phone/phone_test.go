package phone

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalize_SameNumberSameKey(t *testing.T) {
	inputs := []string{
		"(555) 123-4567",
		"5551234567",
		"+15551234567",
		"1-555-123-4567",
		"555.123.4567",
		" 1 (555) 123 4567 ",
	}
	for _, in := range inputs {
		got, err := Canonicalize(in)
		require.NoError(t, err, "input %q", in)
		require.Equal(t, "+15551234567", got, "input %q", in)
	}
}

func TestCanonicalize_Invalid(t *testing.T) {
	for _, in := range []string{"", "abc", "---", "  ", "+"} {
		_, err := Canonicalize(in)
		require.ErrorIs(t, err, ErrInvalid, "input %q", in)
	}
}

func TestCanonicalize_BestEffort(t *testing.T) {
	got, err := Canonicalize("+44 20 7946 0958")
	require.NoError(t, err)
	require.Equal(t, "+442079460958", got)

	got, err = Canonicalize("12345")
	require.NoError(t, err)
	require.Equal(t, "+12345", got)
}

func TestCanonicalizeStrict(t *testing.T) {
	got, err := CanonicalizeStrict("(555) 987-6543")
	require.NoError(t, err)
	require.Equal(t, "+15559876543", got)

	got, err = CanonicalizeStrict("+1 (555) 987-6543")
	require.NoError(t, err)
	require.Equal(t, "+15559876543", got)

	_, err = CanonicalizeStrict("abc")
	require.ErrorIs(t, err, ErrInvalid)

	_, err = CanonicalizeStrict("+44 20 7946 0958")
	require.ErrorIs(t, err, ErrImprecise)

	// An 11-digit number not starting with 1 is not a valid NANP form.
	_, err = CanonicalizeStrict("25551234567")
	require.ErrorIs(t, err, ErrImprecise)
}
