package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"murmur/internal/domain"
	"murmur/internal/logging"
	"murmur/internal/ports"
)

// OutputDispatcher delivers final text to the clipboard and/or the active
// text cursor. Copy and paste are independent: one failing never blocks the
// other, and the returned status reflects only what was enabled and
// succeeded.
type OutputDispatcher struct {
	clipboard ports.Clipboard
	cursor    ports.CursorWriter
	events    ports.EventSink
	log       zerolog.Logger
}

func NewOutputDispatcher(clipboard ports.Clipboard, cursor ports.CursorWriter, events ports.EventSink) *OutputDispatcher {
	return &OutputDispatcher{
		clipboard: clipboard,
		cursor:    cursor,
		events:    events,
		log:       logging.WithComponent("output"),
	}
}

func (d *OutputDispatcher) Deliver(ctx context.Context, text string, opts domain.DeliveryOptions) (domain.DeliveryStatus, error) {
	var errs []error
	copied := false
	pasted := false

	if opts.Copy {
		if err := d.clipboard.SetText(ctx, text); err != nil {
			d.log.Warn().Err(err).Msg("clipboard write failed")
			d.events.Warning(domain.ErrorCodeClipboard, err.Error())
			errs = append(errs, fmt.Errorf("clipboard: %w", err))
		} else {
			copied = true
		}
	}

	if opts.Paste {
		if err := d.cursor.WriteAtCursor(ctx, text); err != nil {
			d.log.Warn().Err(err).Msg("cursor insertion failed")
			d.events.Warning(domain.ErrorCodeCursor, err.Error())
			errs = append(errs, fmt.Errorf("cursor: %w", err))
		} else {
			pasted = true
		}
	}

	status := deliveryStatus(copied, pasted)
	d.events.Delivered(status)
	return status, errors.Join(errs...)
}

func deliveryStatus(copied, pasted bool) domain.DeliveryStatus {
	switch {
	case copied && pasted:
		return domain.DeliveryCopiedAndPasted
	case copied:
		return domain.DeliveryCopied
	case pasted:
		return domain.DeliveryPasted
	default:
		return domain.DeliveryNone
	}
}
