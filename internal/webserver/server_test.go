package webserver

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParseToken(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest("GET", "/", nil), httptest.NewRecorder())

	raw, err := IssueToken("secret", "admin", time.Hour)
	require.NoError(t, err)

	parsed, err := parseToken("secret")(c, raw)
	require.NoError(t, err)
	c.Set(UserContextKey, parsed)
	assert.Equal(t, "admin", CurrentAdmin(c))

	_, err = parseToken("other")(c, raw)
	assert.Error(t, err)

	expired, err := IssueToken("secret", "admin", -time.Minute)
	require.NoError(t, err)
	_, err = parseToken("secret")(c, expired)
	assert.Error(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &AdminClaims{Username: "admin"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = parseToken("secret")(c, unsigned)
	assert.Error(t, err)
}

func TestCurrentAdminWithoutToken(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest("GET", "/", nil), httptest.NewRecorder())
	assert.Empty(t, CurrentAdmin(c))
}
