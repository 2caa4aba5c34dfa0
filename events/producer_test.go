package events

import (
	"encoding/json"
	"testing"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLog(t *testing.T) {
	mock := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(raw []byte) error {
		var event map[string]interface{}
		if err := json.Unmarshal(raw, &event); err != nil {
			return err
		}
		assert.Equal(t, "order_accepted", event["event"])
		assert.Equal(t, "O1", event["order_id"])
		assert.Contains(t, event, "timestamp")
		return nil
	})

	p := NewWithClient(mock, "courier-events", zap.NewNop())
	p.Log(map[string]interface{}{
		"event":    "order_accepted",
		"order_id": "O1",
	})

	require.NoError(t, mock.Close())
}

func TestLogSwallowsSendFailure(t *testing.T) {
	mock := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	mock.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewWithClient(mock, "courier-events", zap.NewNop())
	p.Log(map[string]interface{}{"event": "courier_online"})

	require.NoError(t, mock.Close())
}

func TestNilProducerIsInert(t *testing.T) {
	var p *Producer
	p.Log(map[string]interface{}{"event": "noop"})
	p.Close()

	p = NewWithClient(nil, "courier-events", zap.NewNop())
	p.Log(map[string]interface{}{"event": "noop"})
	p.Close()
}
