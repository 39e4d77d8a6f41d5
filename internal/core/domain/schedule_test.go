package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleValueDecoding(t *testing.T) {
	require := require.New(t)

	var entries map[string]ScheduleValue
	err := json.Unmarshal([]byte(`{"20260101****":"netzero","202601010800":500,"********0900":"netzero+","202601011000":-250}`), &entries)
	require.NoError(err)
	require.Equal(NetZeroValue(), entries["20260101****"])
	require.Equal(FixedValue(500), entries["202601010800"])
	require.Equal(NetZeroPlusValue(), entries["********0900"])
	require.Equal(FixedValue(-250), entries["202601011000"])
}

func TestScheduleValueRejectsUnknown(t *testing.T) {
	assert := assert.New(t)

	for _, raw := range []string{`"zero"`, `12.5`, `true`, `null`, `"500"`} {
		var v ScheduleValue
		err := json.Unmarshal([]byte(raw), &v)
		assert.Error(err, raw)
		assert.True(errors.Is(err, ErrInvalidScheduleValue), raw)
	}
}

func TestScheduleValueEncoding(t *testing.T) {
	assert := assert.New(t)

	b, err := json.Marshal(map[string]ScheduleValue{"a": FixedValue(-100), "b": NetZeroPlusValue()})
	assert.NoError(err)
	assert.JSONEq(`{"a":-100,"b":"netzero+"}`, string(b))
}

func TestValidateScheduleKey(t *testing.T) {
	assert := assert.New(t)

	assert.NoError(ValidateScheduleKey("202601010800"))
	assert.NoError(ValidateScheduleKey("************"))
	assert.ErrorIs(ValidateScheduleKey("2026010108"), ErrInvalidScheduleKey)
	assert.ErrorIs(ValidateScheduleKey("2026010108000"), ErrInvalidScheduleKey)
	assert.ErrorIs(ValidateScheduleKey("2026-1010800"), ErrInvalidScheduleKey)
}

func TestParseScheduleValue(t *testing.T) {
	assert := assert.New(t)

	v, err := ParseScheduleValue(" 800 ")
	assert.NoError(err)
	assert.Equal(FixedValue(800), v)

	v, err = ParseScheduleValue("netzero")
	assert.NoError(err)
	assert.True(v.IsFeedback())

	_, err = ParseScheduleValue("max")
	assert.ErrorIs(err, ErrInvalidScheduleValue)
}
