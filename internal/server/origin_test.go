package server

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func requestWithOrigin(origin string) *http.Request {
	r, _ := http.NewRequest(http.MethodGet, "http://localhost/lobby", http.NoBody)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}

func TestOriginPolicyWildcard(t *testing.T) {
	p := newOriginPolicy([]string{"*"})

	assert.True(t, p.allows(requestWithOrigin("")))
	assert.True(t, p.allows(requestWithOrigin("http://anything.example")))
}

func TestOriginPolicyAllowList(t *testing.T) {
	p := newOriginPolicy([]string{" https://App.Example ", "not-a-url", ""})

	assert.Equal(t, []string{"not-a-url"}, p.invalid)
	assert.True(t, p.allows(requestWithOrigin("https://app.example")))
	assert.True(t, p.allows(requestWithOrigin("HTTPS://APP.EXAMPLE")))
	assert.False(t, p.allows(requestWithOrigin("http://app.example")))
	assert.False(t, p.allows(requestWithOrigin("")))
	assert.False(t, p.allows(requestWithOrigin("javascript:alert(1)")))
}

func TestOriginPolicyEmpty(t *testing.T) {
	p := newOriginPolicy(nil)
	assert.False(t, p.allows(requestWithOrigin("http://localhost:3012")))
}
