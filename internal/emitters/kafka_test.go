package emitters

import (
	"encoding/json"
	"testing"
	"time"

	"blockchain-explorer/internal/models"

	"github.com/rs/zerolog"
)

func TestBuildMessage(t *testing.T) {
	event := models.TransactionEvent{
		Network:     models.OneFinityTestnet,
		TxHash:      "0xabc",
		From:        "erd1from",
		To:          "erd1to",
		Amount:      "1.0",
		Status:      "success",
		Timestamp:   time.Unix(1700000000, 0).UTC(),
		ExplorerURL: "https://testnet-explorer.onefinity.network/tx/0xabc",
	}

	msg, err := buildMessage(event)
	if err != nil {
		t.Fatalf("buildMessage() error = %v", err)
	}
	if string(msg.Key) != "0xabc" {
		t.Errorf("Key = %q, want 0xabc", msg.Key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != "onefinity-testnet" {
		t.Errorf("Headers = %v", msg.Headers)
	}

	var decoded map[string]any
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("value is not JSON: %v", err)
	}
	if decoded["txHash"] != "0xabc" || decoded["amount"] != "1.0" || decoded["network"] != "onefinity-testnet" {
		t.Errorf("decoded = %v", decoded)
	}
}

func TestKafkaEmitter_Closed(t *testing.T) {
	logger := zerolog.New(nil)
	k := NewKafkaEmitter("localhost:9092", "test", &logger)

	if err := k.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := k.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := k.EmitEvent(models.TransactionEvent{TxHash: "x"}); err == nil {
		t.Error("EmitEvent() after Close should fail")
	}
}
