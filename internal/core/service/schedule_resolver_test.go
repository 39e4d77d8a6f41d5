package service

import (
	"testing"

	"github.com/berfenger/zenschedule/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var resolver = &DefaultScheduleResolver{}

func TestResolveOverrideOrdering(t *testing.T) {
	require := require.New(t)

	entries := map[string]domain.ScheduleValue{
		"20260101****": domain.NetZeroValue(),
		"202601010800": domain.FixedValue(500),
	}
	slots := resolver.Resolve(entries, "20260101")
	require.Len(slots, 24)

	for _, slot := range slots {
		require.NotNil(slot.Value, slot.Time)
		if slot.Time < "0800" {
			require.Equal(domain.NetZeroValue(), *slot.Value, slot.Time)
			require.Equal("20260101****", *slot.Key)
		} else {
			require.Equal(domain.FixedValue(500), *slot.Value, slot.Time)
			require.Equal("202601010800", *slot.Key)
		}
	}
}

func TestResolveSpecificityTiebreak(t *testing.T) {
	require := require.New(t)

	entries := map[string]domain.ScheduleValue{
		"202601010800": domain.FixedValue(500),
		"********0800": domain.NetZeroPlusValue(),
	}
	slots := resolver.Resolve(entries, "20260101")

	for _, slot := range slots {
		if slot.Time < "0800" {
			require.Nil(slot.Value, slot.Time)
			require.Nil(slot.Key, slot.Time)
		} else {
			require.Equal(domain.FixedValue(500), *slot.Value, slot.Time)
		}
	}

	// on another date only the generic entry matches
	other := resolver.Resolve(entries, "20260102")
	at := resolver.ValueAt(other, "0930")
	require.NotNil(at)
	require.Equal(domain.NetZeroPlusValue(), *at.Value)
}

func TestResolveAddsMinuteSlots(t *testing.T) {
	require := require.New(t)

	entries := map[string]domain.ScheduleValue{
		"202601011430": domain.FixedValue(-300),
		"202601021545": domain.FixedValue(100),
	}
	slots := resolver.Resolve(entries, "20260101")
	require.Len(slots, 25)

	var times []string
	for _, slot := range slots {
		times = append(times, slot.Time)
	}
	require.Contains(times, "1430")
	require.NotContains(times, "1545")

	at := resolver.ValueAt(slots, "1429")
	require.Equal("1400", at.Time)
	require.Nil(at.Value)

	at = resolver.ValueAt(slots, "1431")
	require.Equal("1430", at.Time)
	require.Equal(domain.FixedValue(-300), *at.Value)

	// the entry stays in effect for the rest of the day
	at = resolver.ValueAt(slots, "2359")
	require.Equal(domain.FixedValue(-300), *at.Value)
}

func TestResolveLatestConcreteTimeWins(t *testing.T) {
	require := require.New(t)

	entries := map[string]domain.ScheduleValue{
		"********0600": domain.FixedValue(200),
		"********0900": domain.FixedValue(-200),
		"2026****0700": domain.FixedValue(300),
	}
	slots := resolver.Resolve(entries, "20260315")

	at := resolver.ValueAt(slots, "0630")
	require.Equal(domain.FixedValue(200), *at.Value)
	at = resolver.ValueAt(slots, "0800")
	require.Equal(domain.FixedValue(300), *at.Value)
	at = resolver.ValueAt(slots, "1000")
	require.Equal(domain.FixedValue(-200), *at.Value)
}

func TestResolveReverseLexicalTiebreak(t *testing.T) {
	require := require.New(t)

	entries := map[string]domain.ScheduleValue{
		"2026****1200": domain.FixedValue(100),
		"****01011200": domain.FixedValue(200),
	}
	slots := resolver.Resolve(entries, "20260101")
	at := resolver.ValueAt(slots, "1200")
	require.Equal("2026****1200", *at.Key)
	require.Equal(domain.FixedValue(100), *at.Value)
}

func TestResolvePartialWildcardTime(t *testing.T) {
	require := require.New(t)

	entries := map[string]domain.ScheduleValue{
		"20260101****": domain.FixedValue(0),
		"2026010108**": domain.FixedValue(400),
	}
	slots := resolver.Resolve(entries, "20260101")
	require.Len(slots, 24)

	at := resolver.ValueAt(slots, "0815")
	require.Equal(domain.FixedValue(400), *at.Value)
	at = resolver.ValueAt(slots, "0915")
	require.Equal(domain.FixedValue(0), *at.Value)
}

func TestResolveDeterminism(t *testing.T) {
	assert := assert.New(t)

	entries := map[string]domain.ScheduleValue{
		"20260101****": domain.NetZeroValue(),
		"202601010800": domain.FixedValue(500),
		"********0800": domain.NetZeroPlusValue(),
		"******011230": domain.FixedValue(-100),
		"2026****1230": domain.FixedValue(-150),
	}
	first := resolver.Resolve(entries, "20260101")
	for i := 0; i < 20; i++ {
		assert.Equal(first, resolver.Resolve(entries, "20260101"))
	}
}

func TestResolveEmpty(t *testing.T) {
	require := require.New(t)

	slots := resolver.Resolve(nil, "20260101")
	require.Len(slots, 24)
	require.Equal("0000", slots[0].Time)
	require.Equal("2300", slots[23].Time)
	for _, slot := range slots {
		require.Nil(slot.Value)
	}
	require.Nil(resolver.ValueAt(nil, "1200"))
}
