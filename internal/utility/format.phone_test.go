package utility

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhoneNumber(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"đã có mã quốc gia kèm ký tự format", "+55 (11) 98765-4321", "5511987654321"},
		{"prefix quốc tế 00", "005511987654321", "5511987654321"},
		{"trunk prefix nội địa", "011987654321", "5511987654321"},
		{"số trần không mã quốc gia", "1187654321", "551187654321"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizePhoneNumber(tc.raw, "55")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizePhoneNumber_Invalid(t *testing.T) {
	_, err := NormalizePhoneNumber("123", "55")
	assert.Error(t, err)

	_, err = NormalizePhoneNumber("không phải số", "55")
	assert.Error(t, err)
}
