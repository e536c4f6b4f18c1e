package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanTransitionOrder(t *testing.T) {
	require.True(t, CanTransitionOrder(OrderPending, OrderAssigned))
	require.True(t, CanTransitionOrder(OrderAssigned, OrderOnRoute))
	require.True(t, CanTransitionOrder(OrderOnRoute, OrderDelivered))

	// Cancellation is open from every non-terminal status.
	require.True(t, CanTransitionOrder(OrderPending, OrderCancelled))
	require.True(t, CanTransitionOrder(OrderAssigned, OrderCancelled))
	require.True(t, CanTransitionOrder(OrderOnRoute, OrderCancelled))

	// No skipping stages and no leaving terminal states.
	require.False(t, CanTransitionOrder(OrderPending, OrderOnRoute))
	require.False(t, CanTransitionOrder(OrderPending, OrderDelivered))
	require.False(t, CanTransitionOrder(OrderAssigned, OrderDelivered))
	require.False(t, CanTransitionOrder(OrderDelivered, OrderCancelled))
	require.False(t, CanTransitionOrder(OrderCancelled, OrderPending))
	require.False(t, CanTransitionOrder(OrderOnRoute, OrderAssigned))
}

func TestIsOrderStatus(t *testing.T) {
	for s := range orderTransitions {
		require.True(t, IsOrderStatus(s))
	}
	require.False(t, IsOrderStatus("SHIPPED"))
	require.False(t, IsOrderStatus(""))
}
