package pkg

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate_JSONRoundTrip(t *testing.T) {
	d := NewDate(2024, time.January, 1)

	marshaled, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2024-01-01"`, string(marshaled))

	var parsed Date
	require.NoError(t, json.Unmarshal(marshaled, &parsed))
	assert.True(t, d.Equal(parsed.Time))
}

func TestDate_UnmarshalNull(t *testing.T) {
	var withOptionalDate struct {
		Date *Date `json:"date"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"date":null}`), &withOptionalDate))
	assert.Nil(t, withOptionalDate.Date)

	require.NoError(t, json.Unmarshal([]byte(`{"date":"2023-11-30"}`), &withOptionalDate))
	require.NotNil(t, withOptionalDate.Date)
	assert.Equal(t, "2023-11-30", withOptionalDate.Date.String())
}

func TestDate_UnmarshalInvalid(t *testing.T) {
	var d Date
	assert.Error(t, json.Unmarshal([]byte(`"not-a-date"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`12345`), &d))
}

func TestDate_Compare(t *testing.T) {
	d1 := NewDate(2024, time.March, 10)
	d2 := NewDate(2024, time.March, 11)
	assert.True(t, d1.Before(d2.Time))
	assert.False(t, d2.Before(d1.Time))

	sameDay := DateOf(time.Date(2024, time.March, 10, 23, 59, 0, 0, time.UTC))
	assert.True(t, d1.Equal(sameDay.Time))
}

func TestDate_AddDays(t *testing.T) {
	d := NewDate(2024, time.February, 28)
	assert.Equal(t, "2024-02-29", d.AddDays(1).String()) // leap year
	assert.Equal(t, "2024-01-29", d.AddDays(-30).String())
}
