package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage(t *testing.T) {
	t.Parallel()

	msg, err := newMessage(context.Background(), "snapshot.ready", map[string]string{"name": "nitjsr-scrape-x"})
	require.NoError(t, err)
	assert.Equal(t, "snapshot.ready", msg.Attributes["event"])

	var body map[string]string
	require.NoError(t, json.Unmarshal(msg.Data, &body))
	assert.Equal(t, "nitjsr-scrape-x", body["name"])

	_, err = newMessage(context.Background(), "", func() {})
	assert.ErrorContains(t, err, "marshal payload")
}

func TestCarrier(t *testing.T) {
	t.Parallel()

	c := &pubsubCarrier{attrs: map[string]string{}}
	c.Set("traceparent", "00-abc")
	assert.Equal(t, "00-abc", c.Get("traceparent"))
	assert.Equal(t, []string{"traceparent"}, c.Keys())
}

func TestValidationAndNilPublisher(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{TopicID: "t"})
	require.Error(t, err)
	_, err = New(context.Background(), Config{ProjectID: "p"})
	require.Error(t, err)

	var p *Publisher
	_, err = p.Publish(context.Background(), "x", nil)
	assert.ErrorContains(t, err, "not configured")
}
