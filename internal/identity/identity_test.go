package identity

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartalks/backend/internal/apperror"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ab-12-cd", "AB12CD"},
		{" xy 34 yz ", "XY34YZ"},
		{"AB12CD", "AB12CD"},
		{"a_b.c", "ABC"},
		{"--", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestConversationKey_Scenario(t *testing.T) {
	k1, err := ConversationKey("AB12CD", "XY34YZ")
	require.NoError(t, err)
	k2, err := ConversationKey("XY34YZ", "AB12CD")
	require.NoError(t, err)

	assert.Equal(t, "AB12CD_XY34YZ", k1)
	assert.Equal(t, k1, k2)
}

func TestConversationKey_Symmetry(t *testing.T) {
	ids := []string{"AB12CD", "XY34YZ", "1ABC23", "ZZ99ZZ", "00AA00", "K1"}
	for _, a := range ids {
		for _, b := range ids {
			if a == b {
				continue
			}
			ab, err := ConversationKey(a, b)
			require.NoError(t, err)
			ba, err := ConversationKey(b, a)
			require.NoError(t, err)
			assert.Equal(t, ab, ba, "key(%s,%s)", a, b)
		}
	}
}

func TestConversationKey_CaseVariants(t *testing.T) {
	want, err := ConversationKey("AB-12-CD", "XY-34-YZ")
	require.NoError(t, err)

	variants := [][2]string{
		{"ab-12-cd", "XY34YZ"},
		{"AB12CD", "xy-34-yz"},
		{"Ab12cD", "xY34Yz"},
	}
	for _, v := range variants {
		got, err := ConversationKey(v[0], v[1])
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestConversationKey_Invalid(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{"empty first", "", "XY34YZ"},
		{"empty second", "AB12CD", ""},
		{"separators only", "--", "XY34YZ"},
		{"same participant", "ab-12-cd", "AB12CD"},
		{"too long", "AB12CD", strings.Repeat("A", MaxIdentifierLength+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ConversationKey(tt.a, tt.b)
			assert.True(t, errors.Is(err, apperror.ErrInvalidIdentifier), "got %v", err)
		})
	}
}

func TestSplitKey(t *testing.T) {
	a, b, err := SplitKey("AB12CD_XY34YZ")
	require.NoError(t, err)
	assert.Equal(t, "AB12CD", a)
	assert.Equal(t, "XY34YZ", b)

	for _, bad := range []string{"", "AB12CD", "XY34YZ_AB12CD", "ab12cd_XY34YZ", "A_B_C", "AB12CD_AB12CD"} {
		_, _, err := SplitKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestOther(t *testing.T) {
	other, err := Other("AB12CD_XY34YZ", "ab-12-cd")
	require.NoError(t, err)
	assert.Equal(t, "XY34YZ", other)

	other, err = Other("AB12CD_XY34YZ", "XY34YZ")
	require.NoError(t, err)
	assert.Equal(t, "AB12CD", other)

	_, err = Other("AB12CD_XY34YZ", "ZZ99ZZ")
	assert.True(t, errors.Is(err, apperror.ErrForbidden))

	assert.True(t, IsParticipant("AB12CD_XY34YZ", "xy34yz"))
	assert.False(t, IsParticipant("AB12CD_XY34YZ", "ZZ99ZZ"))
}

func TestIsValidDutchPlate(t *testing.T) {
	tests := []struct {
		plate string
		want  bool
	}{
		{"AB-12-34", true},
		{"12-34-AB", true},
		{"12-AB-34", true},
		{"AB-12-CD", true},
		{"AB-CD-12", true},
		{"12-ABC-3", true},
		{"1-ABC-23", true},
		{"AB-123-C", true},
		{"A-123-BC", true},
		{"ABC-12-D", true},
		{"A-12-BCD", true},
		{"1-AB-234", true},
		{"123-AB-4", true},
		{"ab12cd", true},
		{"ABCDEF", false},
		{"123456", false},
		{"AB-12-3", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.plate, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidDutchPlate(tt.plate))
		})
	}
}

func TestValidate_Length(t *testing.T) {
	longest := strings.Repeat("Z", MaxIdentifierLength)
	id, err := Validate(strings.ToLower(longest))
	require.NoError(t, err)
	assert.Equal(t, longest, id)

	_, err = Validate(longest + "1")
	assert.ErrorIs(t, err, apperror.ErrInvalidIdentifier)

	// Separators do not count towards the limit.
	id, err = Validate("AB-12-CD")
	require.NoError(t, err)
	assert.Equal(t, "AB12CD", id)

	key, err := ConversationKey(longest, strings.Repeat("Y", MaxIdentifierLength))
	require.NoError(t, err)
	assert.Len(t, key, MaxKeyLength)
}
