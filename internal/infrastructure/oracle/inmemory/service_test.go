package inmemoryoracle_test

import (
	"context"
	"testing"
	"time"

	"github.com/rafflepool/rafflepool/internal/core/ports"
	inmemoryoracle "github.com/rafflepool/rafflepool/internal/infrastructure/oracle/inmemory"
	"github.com/stretchr/testify/require"
)

func TestOracle(t *testing.T) {
	oracle, err := inmemoryoracle.NewService(0)
	require.NoError(t, err)
	defer oracle.Close()

	params := ports.RandomnessParams{
		Confirmations:  1,
		NumValues:      2,
		ResourceBudget: 1000,
		RequestClass:   "standard",
	}

	requestId, err := oracle.Request(context.Background(), params)
	require.NoError(t, err)
	require.NotEmpty(t, requestId)

	select {
	case fulfillment := <-oracle.Fulfillments():
		require.Equal(t, requestId, fulfillment.RequestId)
		require.Len(t, fulfillment.Values, 2)
	case <-time.After(time.Second):
		t.Fatal("no fulfillment delivered")
	}
}

func TestOracleInvalidParams(t *testing.T) {
	_, err := inmemoryoracle.NewService(-time.Second)
	require.EqualError(t, err, "invalid fulfillment delay")

	oracle, err := inmemoryoracle.NewService(0)
	require.NoError(t, err)
	defer oracle.Close()

	_, err = oracle.Request(context.Background(), ports.RandomnessParams{})
	require.EqualError(t, err, "missing number of random values")
}
