package events_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsprackett/agenda-live/internal/events"
)

func TestDecodeChange(t *testing.T) {
	e, err := events.Decode(events.NameChange, json.RawMessage(`{"tipo":"INSERT","entidade":"DEMANDA","usuario":"Ana"}`))
	require.NoError(t, err)
	assert.Equal(t, events.ChangeReceived{Change: events.Change{
		Type:   events.Insert,
		Entity: events.EntityDemanda,
		Actor:  "Ana",
	}}, e)
}

func TestDecodePresence(t *testing.T) {
	e, err := events.Decode(events.NamePresence, json.RawMessage(`{"usuario":"Bruno"}`))
	require.NoError(t, err)
	assert.Equal(t, events.PresenceReceived{User: "Bruno"}, e)
}

func TestDecodePongWithoutPayload(t *testing.T) {
	e, err := events.Decode(events.NamePong, nil)
	require.NoError(t, err)
	assert.Equal(t, events.Pong{}, e)
}

func TestDecodeUnknownIsIgnored(t *testing.T) {
	e, err := events.Decode("something_else", json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestDecodeMalformedChange(t *testing.T) {
	_, err := events.Decode(events.NameChange, json.RawMessage(`["not","an","object"]`))
	assert.Error(t, err)
}
