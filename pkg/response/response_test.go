package response

import (
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sensei/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ginErrors holds gin.Context.Errors, whose slice type gin does not export.
type ginErrors interface{ String() string }

func failWith(err error) (*httptest.ResponseRecorder, ginErrors) {
	var attached ginErrors
	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		FailWithError(c, err)
		attached = c.Errors
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w, attached
}

func TestFail_ServerErrorIsAttached(t *testing.T) {
	w, attached := failWith(stderrors.New("disk full"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.Len(t, attached, 1)
	assert.Contains(t, attached.String(), "disk full")
	assert.NotContains(t, w.Body.String(), "disk full")
}

func TestFail_ClientErrorIsNotAttached(t *testing.T) {
	w, attached := failWith(errors.ErrValidation.WithMessage("prompt is required"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, attached)
	assert.Contains(t, w.Body.String(), "prompt is required")
}
