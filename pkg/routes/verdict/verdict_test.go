package verdict

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext(t *testing.T, target string) echo.Context {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestGetVerdictRejectsMalformedPairKey(t *testing.T) {
	for _, key := range []string{"abc", "12", "12-", "-x", "12-34-56", "12_34"} {
		c := newContext(t, "/")
		c.SetParamNames("pairKey")
		c.SetParamValues(key)

		err := GetVerdict(c)
		require.Error(t, err, "key %q", key)
		require.True(t, httperror.IsHTTPError(err), "key %q", key)
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err), "key %q", key)
	}
}

func TestListVerdictsRejectsUnknownSource(t *testing.T) {
	err := ListVerdicts(newContext(t, "/?source=GUESS"))
	require.True(t, httperror.IsHTTPError(err))
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}

func TestListVerdictsRejectsBadLimit(t *testing.T) {
	err := ListVerdicts(newContext(t, "/?source=RULE&limit=zero"))
	require.True(t, httperror.IsHTTPError(err))
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}
