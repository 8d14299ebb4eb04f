package mq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublisherHealthy(t *testing.T) {
	var p *Publisher
	assert.False(t, p.Healthy(), "a nil publisher is never healthy")
	assert.False(t, (&Publisher{}).Healthy(), "no connection means not healthy")
}
