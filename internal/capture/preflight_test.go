package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateIPv4(t *testing.T) {
	assert.NoError(t, ValidateIPv4("192.168.1.1"))
	assert.Error(t, ValidateIPv4("not-an-ip"))
	assert.Error(t, ValidateIPv4("999.999.999.999"))
}

func TestValidateTZOffset(t *testing.T) {
	assert.NoError(t, ValidateTZOffset("+08:00"))
	assert.NoError(t, ValidateTZOffset("-05:30"))
	assert.NoError(t, ValidateTZOffset("+14:00"))
	assert.Error(t, ValidateTZOffset("+15:00"), "exceeds 14h magnitude")
	assert.Error(t, ValidateTZOffset("0800"), "missing colon/sign")
	assert.Error(t, ValidateTZOffset("+8:00"), "must be two digits")
}

func TestValidateInterval(t *testing.T) {
	assert.NoError(t, ValidateInterval(1))
	assert.NoError(t, ValidateInterval(0.2))
	assert.Error(t, ValidateInterval(0))
	assert.Error(t, ValidateInterval(-1))
}

func TestCheckAdbAvailableMissing(t *testing.T) {
	err := CheckAdbAvailable("definitely-not-a-real-binary-xyz")
	require.Error(t, err)
	fe, ok := err.(interface{ Error() string })
	require.True(t, ok)
	assert.Contains(t, fe.Error(), "adb not found")
}
