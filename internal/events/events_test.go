package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMessageCarriesKeyTypeAndJSON(t *testing.T) {
	at := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	msg, err := message(Event{Type: TypeShipment, Key: "SHP-1", At: at, Payload: map[string]string{"kg": "12.5"}})
	require.NoError(t, err)

	assert.Equal(t, "SHP-1", string(msg.Key))
	assert.Equal(t, "type", msg.Headers[0].Key)
	assert.Equal(t, TypeShipment, string(msg.Headers[0].Value))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "12.5", decoded["payload"].(map[string]interface{})["kg"])
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, Event) error { return errors.New("broker down") }
func (failingPublisher) Close() error                         { return nil }

func TestPublishQuietlyLogsFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	PublishQuietly(failingPublisher{}, zap.New(core), Event{Type: TypeLotDeleted, Key: "STK-1"})
	assert.Equal(t, 1, logs.Len())

	assert.NotPanics(t, func() { PublishQuietly(nil, nil, Event{}) })
	assert.NoError(t, Nop{}.Publish(context.Background(), Event{}))
}
