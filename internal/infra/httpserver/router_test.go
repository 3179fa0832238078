package httpserver

import (
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	domain "github.com/fairlens/fairlens/internal/domain/analyses"
	dominsights "github.com/fairlens/fairlens/internal/domain/insights"
)

func TestWrapMapsErrorsToStatusCodes(t *testing.T) {
	r := &Router{}

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"no rows", sql.ErrNoRows, http.StatusNotFound},
		{"quota", dominsights.ErrQuotaExceeded, http.StatusTooManyRequests},
		{"validation", domain.Validationf("bad input"), http.StatusUnprocessableEntity},
		{"not found", domain.NotFoundf("no such analysis"), http.StatusNotFound},
		{"transient", domain.Transient("storage", errors.New("reset")), http.StatusInternalServerError},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := r.wrap(func(w http.ResponseWriter, req *http.Request) error {
				if tc.err == nil {
					w.WriteHeader(http.StatusOK)
				}
				return tc.err
			})
			rec := httptest.NewRecorder()
			h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestWrapHidesWrappedInternals(t *testing.T) {
	r := &Router{}
	h := r.wrap(func(w http.ResponseWriter, req *http.Request) error {
		return domain.Validationf("outcome column %q not present", "gender")
	})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "outcome column")
	assert.NotContains(t, rec.Body.String(), "validation:")
}
