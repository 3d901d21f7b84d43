package models

import (
	"time"
)

// TransactionRecord is the canonical, normalized shape of one upstream transaction.
type TransactionRecord struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    string `json:"amount"`
	Timestamp string `json:"timestamp"`
	// Epoch is the parsed Unix timestamp, 0 when upstream did not provide one.
	Epoch     int64  `json:"epoch"`
	Status    string `json:"status"`
	Gas       int64  `json:"gas"`
	FromShard int64  `json:"fromShard"`
	ToShard   int64  `json:"toShard"`
}

// NetworkStats holds the aggregate counters reported by the stats endpoint.
type NetworkStats struct {
	TotalTransactions uint64 `json:"totalTransactions"`
	TotalAccounts     uint64 `json:"totalAccounts"`
	TotalBlocks       uint64 `json:"totalBlocks"`
	CurrentEpoch      uint64 `json:"currentEpoch"`
}

// WalletSession is the in-memory view of a connected wallet.
type WalletSession struct {
	Address  string              `json:"connectedAddress"`
	Balance  string              `json:"balance"`
	Incoming []TransactionRecord `json:"incoming"`
	Outgoing []TransactionRecord `json:"outgoing"`
}

// TransactionEvent is emitted once for every transaction id the sync engine sees for the first time
type TransactionEvent struct {
	Network     NetworkName `json:"network"`
	TxHash      string      `json:"txHash"`
	From        string      `json:"from"`
	To          string      `json:"to"`
	Amount      string      `json:"amount"`
	Status      string      `json:"status"`
	Gas         int64       `json:"gas"`
	FromShard   int64       `json:"fromShard"`
	ToShard     int64       `json:"toShard"`
	Timestamp   time.Time   `json:"timestamp"`
	ExplorerURL string      `json:"explorerUrl,omitempty"`
}
