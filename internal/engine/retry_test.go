package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryableClassifiesTransportErrors(t *testing.T) {
	assert.True(t, isRetryable(&TransportError{Retryable: true}))
	assert.True(t, isRetryable(&TransportError{StatusCode: 503}))
	assert.False(t, isRetryable(&TransportError{StatusCode: 400, Retryable: false}))
	assert.False(t, isRetryable(errors.New("not a transport error")))
}

func TestRetryPolicyBackOffBounded(t *testing.T) {
	p := DefaultRetryPolicy()
	bo := p.NewBackOff()
	count := 0
	for {
		d := bo.NextBackOff()
		if d < 0 {
			break
		}
		count++
		if count > 1000 {
			t.Fatal("backoff did not terminate within MaxRetries")
		}
	}
	assert.Equal(t, p.MaxRetries, count)
}
