package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestResolvePrefersKeychain(t *testing.T) {
	keyring.MockInit()

	assert.Equal(t, "from-env", Resolve(SMTPPassword, "from-env"))

	require.NoError(t, Set(SMTPPassword, "from-keychain"))
	assert.Equal(t, "from-keychain", Resolve(SMTPPassword, "from-env"))

	require.NoError(t, Delete(SMTPPassword))
	assert.Equal(t, "from-env", Resolve(SMTPPassword, "from-env"))
	require.NoError(t, Delete(SMTPPassword))
}

func TestSetRejectsBadInput(t *testing.T) {
	keyring.MockInit()
	assert.Error(t, Set("nope", "x"))
	assert.Error(t, Set(ClassifierToken, "  "))
	assert.Error(t, Delete("nope"))
}
