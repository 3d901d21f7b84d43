package events

import (
	"errors"

	"blockchain-explorer/internal/interfaces"
	"blockchain-explorer/internal/models"

	"github.com/rs/zerolog"
)

// LogEmitter logs every event and forwards it to the wrapped emitter
type LogEmitter struct {
	WrappedEmitter interfaces.EventEmitter
	Logger         *zerolog.Logger
}

// EmitEvent logs the transaction details and forwards to the wrapped emitter
func (d *LogEmitter) EmitEvent(event models.TransactionEvent) error {
	d.Logger.Info().
		Str("network", event.Network.String()).
		Str("txHash", event.TxHash).
		Str("from", event.From).
		Str("to", event.To).
		Str("amount", event.Amount).
		Str("status", event.Status).
		Time("timestamp", event.Timestamp).
		Str("explorer", event.ExplorerURL).
		Msg("New transaction observed")

	if d.WrappedEmitter != nil {
		return d.WrappedEmitter.EmitEvent(event)
	}
	return nil
}

// FanoutEmitter delivers each event to every emitter, continuing past failures.
type FanoutEmitter struct {
	Emitters []interfaces.EventEmitter
}

func (f *FanoutEmitter) EmitEvent(event models.TransactionEvent) error {
	var errs []error
	for _, e := range f.Emitters {
		if err := e.EmitEvent(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Add appends e when it is non-nil.
func (f *FanoutEmitter) Add(e interfaces.EventEmitter) {
	if e != nil {
		f.Emitters = append(f.Emitters, e)
	}
}
