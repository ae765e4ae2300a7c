package registers

import (
	"context"
	"fmt"

	"queue-twin/metrics"
	"queue-twin/models"

	"github.com/rs/zerolog"
)

// RegisterWriter writes a contiguous block of holding registers.
type RegisterWriter interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
}

// Exporter mirrors each snapshot into a Modbus holding-register block.
// Write failures are logged and counted; they never stop the export loop.
type Exporter struct {
	w        RegisterWriter
	unitID   uint8
	base     uint16
	critical func(models.QueueSnapshot) bool
	log      zerolog.Logger

	seq uint16
}

// NewExporter returns an exporter writing to unitID starting at base.
// critical may be nil, in which case the critical register is always zero.
func NewExporter(w RegisterWriter, unitID uint8, base uint16, critical func(models.QueueSnapshot) bool, logger zerolog.Logger) (*Exporter, error) {
	if w == nil {
		return nil, fmt.Errorf("registers: writer required")
	}
	if int(base)+BlockSize > 0x10000 {
		return nil, fmt.Errorf("registers: block at %d overflows the address space", base)
	}
	if critical == nil {
		critical = func(models.QueueSnapshot) bool { return false }
	}
	return &Exporter{
		w:        w,
		unitID:   unitID,
		base:     base,
		critical: critical,
		log:      logger.With().Str("component", "registers").Logger(),
	}, nil
}

// Export writes one snapshot. The sequence register advances on every
// attempt, so a consumer can detect missed writes.
func (e *Exporter) Export(s models.QueueSnapshot) error {
	e.seq++
	regs := Encode(s, e.seq, e.critical(s))

	if err := e.w.WriteRegisters(e.unitID, e.base, regs); err != nil {
		metrics.RegisterWritesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("write registers at %d: %w", e.base, err)
	}
	metrics.RegisterWritesTotal.WithLabelValues("ok").Inc()
	return nil
}

// Run exports every snapshot received on updates until ctx is done or
// updates is closed. It must be the only caller of Export.
func (e *Exporter) Run(ctx context.Context, updates <-chan models.QueueSnapshot) error {
	e.log.Info().
		Uint8("unit_id", e.unitID).
		Uint16("base_address", e.base).
		Int("registers", BlockSize).
		Msg("register export started")

	failing := false
	for {
		select {
		case <-ctx.Done():
			e.log.Info().Msg("register export stopped")
			return nil
		case s, ok := <-updates:
			if !ok {
				e.log.Info().Msg("register export stopped")
				return nil
			}
			err := e.Export(s)
			switch {
			case err != nil && !failing:
				e.log.Warn().Err(err).Msg("register export failing")
				failing = true
			case err != nil:
				e.log.Debug().Err(err).Msg("register export still failing")
			case failing:
				e.log.Info().Msg("register export recovered")
				failing = false
			}
		}
	}
}
