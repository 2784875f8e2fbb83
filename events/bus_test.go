package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_EmitDeliversToSubscriber(t *testing.T) {
	b := NewBus()
	var got any
	b.On(Confirmed, func(e any) { got = e })

	b.Emit(Confirmed, "payload")

	assert.Equal(t, "payload", got)
}

func TestBus_EmitIgnoresOtherNames(t *testing.T) {
	b := NewBus()
	called := false
	b.On(Confirmed, func(any) { called = true })

	b.Emit(Ended, "payload")

	assert.False(t, called)
}

func TestBus_MultipleSubscribersInOrder(t *testing.T) {
	b := NewBus()
	var order []int
	b.On(Progress, func(any) { order = append(order, 1) })
	b.On(Progress, func(any) { order = append(order, 2) })
	b.On(Progress, func(any) { order = append(order, 3) })

	b.Emit(Progress, nil)

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestBus_UnsubscribeStopsDelivery(t *testing.T) {
	b := NewBus()
	called := false
	unsubscribe := b.On(Accepted, func(any) { called = true })
	unsubscribe()

	b.Emit(Accepted, nil)

	assert.False(t, called)
}

func TestBus_UnsubscribeDoesNotAffectOtherSubscribers(t *testing.T) {
	b := NewBus()
	var firstCalled, secondCalled bool
	unsubFirst := b.On(SDP, func(any) { firstCalled = true })
	b.On(SDP, func(any) { secondCalled = true })
	unsubFirst()

	b.Emit(SDP, nil)

	assert.False(t, firstCalled)
	assert.True(t, secondCalled)
}

func TestNewBase_StampsIDAndTime(t *testing.T) {
	a := NewBase("call-1")
	b := NewBase("call-1")

	assert.Equal(t, "call-1", a.CallID)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.Time.IsZero())
}
