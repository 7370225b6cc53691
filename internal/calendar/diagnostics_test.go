package calendar

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubResponseMessage(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected string
	}{
		{
			name:     "google error envelope",
			status:   404,
			body:     `{"error":{"code":404,"message":"Not Found"}}`,
			expected: "Not Found",
		},
		{
			name:     "top level message",
			status:   403,
			body:     `{"message":"Forbidden by policy"}`,
			expected: "Forbidden by policy",
		},
		{
			name:     "error envelope wins over top level message",
			status:   400,
			body:     `{"error":{"message":"Bad Request"},"message":"ignored"}`,
			expected: "Bad Request",
		},
		{
			name:     "empty error message falls through",
			status:   500,
			body:     `{"error":{"message":""}}`,
			expected: "HTTP 500",
		},
		{
			name:     "non JSON body",
			status:   502,
			body:     `<html>Bad Gateway</html>`,
			expected: "HTTP 502",
		},
		{
			name:     "empty body",
			status:   503,
			expected: "HTTP 503",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, subResponseMessage(tt.status, []byte(tt.body)))
		})
	}
}

func TestDiagnostics(t *testing.T) {
	var d Diagnostics
	assert.True(t, d.Empty())
	assert.False(t, d.Partial(2))
	assert.False(t, d.Total(2))

	d.AddFailure("a@example.com", "Not Found", 404)
	assert.False(t, d.Empty())
	assert.True(t, d.Partial(2))
	assert.False(t, d.Total(2))

	var other Diagnostics
	other.AddFailure("b@example.com", "HTTP 500", 500)
	other.AddNote("lookup for %s failed", "b@example.com")
	d.Merge(other)

	assert.True(t, d.Total(2))
	assert.False(t, d.Partial(2))
	assert.Equal(t, []string{"lookup for b@example.com failed"}, d.Notes)
	assert.Equal(t, CalendarFailure{CalendarID: "b@example.com", Message: "HTTP 500", StatusCode: 500}, d.Failures[1])
	assert.False(t, Diagnostics{}.Total(0))
}
