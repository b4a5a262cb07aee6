// Package decode turns raw protocol lines into typed samples. A single
// malformed line is reported and dropped; it never stops ingestion.
package decode

import (
	"strconv"
	"time"

	"codeberg.org/mutker/ironmon/internal/errors"
	"codeberg.org/mutker/ironmon/internal/history"
	"codeberg.org/mutker/ironmon/internal/logger"
)

// Protocol selects the wire format the device speaks.
type Protocol string

const (
	// ProtocolLegacy is one tagged field per line: a single tag
	// character followed by the value as fixed-width decimal digits.
	ProtocolLegacy Protocol = "legacy"
	// ProtocolCombined packs temperature and power back-to-back as two
	// five-digit fields on one line.
	ProtocolCombined Protocol = "combined"
)

const (
	legacyLineWidth   = 6
	combinedLineWidth = 10

	currentScale     = 1000
	voltageScale     = 1000
	temperatureScale = 100
	combinedScale    = 100

	// maxPlausiblePower is the hardware's rated maximum in watts. A
	// derived power above it indicates a transient read glitch, so the
	// value is clamped to 0 instead of propagated.
	maxPlausiblePower = 100
)

// Decoder accumulates partial fields of the legacy protocol and stamps
// completed samples with the elapsed time of the current connection
// epoch. Not safe for concurrent use; the acquisition loop is the only
// caller.
type Decoder struct {
	protocol Protocol
	now      func() time.Time

	epoch  uint64
	origin time.Time

	current float64
	voltage float64
}

func New(protocol Protocol) *Decoder {
	return NewWithClock(protocol, time.Now)
}

// NewWithClock injects the wall clock; tests script it.
func NewWithClock(protocol Protocol, now func() time.Time) *Decoder {
	return &Decoder{
		protocol: protocol,
		now:      now,
		origin:   now(),
	}
}

// StartEpoch resets the elapsed-time origin to now and discards any
// partial field state carried from the previous connection.
func (d *Decoder) StartEpoch(epoch uint64) {
	d.epoch = epoch
	d.origin = d.now()
	d.current = 0
	d.voltage = 0
}

// Decode parses one line. done reports whether a complete sample was
// produced; a nil error with done == false means the line was a valid
// partial field. Malformed lines return a coded error and the decoder
// state is unchanged.
func (d *Decoder) Decode(line []byte) (sample history.Sample, done bool, err error) {
	switch d.protocol {
	case ProtocolCombined:
		return d.decodeCombined(line)
	default:
		return d.decodeLegacy(line)
	}
}

func (d *Decoder) decodeLegacy(line []byte) (history.Sample, bool, error) {
	errFactory := errors.New()

	if len(line) != legacyLineWidth {
		return history.Sample{}, false, errFactory.WithData(ErrMalformedRecord, struct {
			Line   string
			Length int
		}{string(line), len(line)})
	}

	raw, err := strconv.Atoi(string(line[1:]))
	if err != nil {
		return history.Sample{}, false, errFactory.Wrap(ErrMalformedRecord, err)
	}

	switch line[0] {
	case 'A':
		d.current = float64(raw) / currentScale
		return history.Sample{}, false, nil
	case 'V':
		d.voltage = float64(raw) / voltageScale
		return history.Sample{}, false, nil
	case 'C':
		return history.Sample{
			Elapsed:     d.elapsed(),
			Temperature: float64(raw) / temperatureScale,
			Power:       d.clampPower(d.current * d.voltage),
			Epoch:       d.epoch,
		}, true, nil
	default:
		return history.Sample{}, false, errFactory.WithData(ErrUnknownTag, string(line[0]))
	}
}

func (d *Decoder) decodeCombined(line []byte) (history.Sample, bool, error) {
	errFactory := errors.New()

	if len(line) != combinedLineWidth {
		return history.Sample{}, false, errFactory.WithData(ErrMalformedRecord, struct {
			Line   string
			Length int
		}{string(line), len(line)})
	}

	rawTemp, err := strconv.Atoi(string(line[:5]))
	if err != nil {
		return history.Sample{}, false, errFactory.Wrap(ErrMalformedRecord, err)
	}

	rawPower, err := strconv.Atoi(string(line[5:]))
	if err != nil {
		return history.Sample{}, false, errFactory.Wrap(ErrMalformedRecord, err)
	}

	return history.Sample{
		Elapsed:     d.elapsed(),
		Temperature: float64(rawTemp) / combinedScale,
		Power:       d.clampPower(float64(rawPower) / combinedScale),
		Epoch:       d.epoch,
	}, true, nil
}

func (d *Decoder) elapsed() float64 {
	return d.now().Sub(d.origin).Seconds()
}

func (d *Decoder) clampPower(power float64) float64 {
	if power > maxPlausiblePower {
		logger.Debug().
			Float64("power", power).
			Float64("ceiling", maxPlausiblePower).
			Msg("Implausible power reading, clamping to 0")
		return 0
	}

	return power
}
