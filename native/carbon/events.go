package carbon

import (
	"encoding/hex"
	"strconv"

	"circnexus/core/types"
)

const (
	EventTypeConverted          = "carbon.converted"
	EventTypeConversionVerified = "carbon.conversionVerified"
	EventTypeRetired            = "carbon.retired"
)

type carbonEvent struct {
	evt *types.Event
}

func (e carbonEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e carbonEvent) Event() *types.Event { return e.evt }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(carbonEvent{evt: evt})
}

func newConvertedEvent(c *Conversion) *types.Event {
	return &types.Event{Type: EventTypeConverted, Attributes: map[string]string{
		"id":          strconv.FormatUint(c.ID, 10),
		"user":        hex.EncodeToString(c.User[:]),
		"wasteType":   c.WasteType.String(),
		"wasteAmount": c.WasteAmount.String(),
		"gross":       c.GrossCredits.String(),
		"fee":         c.Fee.String(),
		"net":         c.NetCredits.String(),
		"methodology": c.MethodologyTag,
		"status":      c.Status.String(),
	}}
}

func newConversionVerifiedEvent(c *Conversion, approved bool) *types.Event {
	return &types.Event{Type: EventTypeConversionVerified, Attributes: map[string]string{
		"id":       strconv.FormatUint(c.ID, 10),
		"approved": strconv.FormatBool(approved),
		"status":   c.Status.String(),
	}}
}

func newRetiredEvent(r *Retirement) *types.Event {
	return &types.Event{Type: EventTypeRetired, Attributes: map[string]string{
		"id":     strconv.FormatUint(r.ID, 10),
		"user":   hex.EncodeToString(r.User[:]),
		"amount": r.Amount.String(),
		"reason": r.Reason,
	}}
}
