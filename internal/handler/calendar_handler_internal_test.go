package handler

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocationDefaultsToLocalZone(t *testing.T) {
	loc, err := location(httptest.NewRequest("GET", "/upcoming", nil))
	require.NoError(t, err)
	assert.Same(t, time.Local, loc)

	loc, err = location(httptest.NewRequest("GET", "/upcoming?tz=Africa/Nairobi", nil))
	require.NoError(t, err)
	assert.Equal(t, "Africa/Nairobi", loc.String())

	_, err = location(httptest.NewRequest("GET", "/upcoming?tz=Nowhere/Else", nil))
	assert.Error(t, err)
}
