package waste

import (
	"encoding/hex"
	"strconv"

	"circnexus/core/types"
)

const (
	EventTypeSubmitted         = "waste.submitted"
	EventTypeVerified          = "waste.verified"
	EventTypeMultiplierUpdated = "waste.multiplierUpdated"
)

type wasteEvent struct {
	evt *types.Event
}

func (e wasteEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e wasteEvent) Event() *types.Event { return e.evt }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(wasteEvent{evt: evt})
}

func newSubmittedEvent(s *Submission) *types.Event {
	return &types.Event{Type: EventTypeSubmitted, Attributes: map[string]string{
		"id":          strconv.FormatUint(s.ID, 10),
		"submitter":   hex.EncodeToString(s.Submitter[:]),
		"wasteType":   s.Type.String(),
		"quality":     s.Quality.String(),
		"weightGrams": strconv.FormatUint(s.WeightGrams, 10),
		"minted":      s.TokensMinted.String(),
	}}
}

func newVerifiedEvent(s *Submission, approved bool) *types.Event {
	return &types.Event{Type: EventTypeVerified, Attributes: map[string]string{
		"id":       strconv.FormatUint(s.ID, 10),
		"approved": strconv.FormatBool(approved),
		"verdict":  s.Verdict.String(),
		"burned": func() string {
			if approved || s.TokensMinted == nil {
				return "0"
			}
			return s.TokensMinted.String()
		}(),
	}}
}

func newMultiplierUpdatedEvent(kind, key string, bps uint32) *types.Event {
	return &types.Event{Type: EventTypeMultiplierUpdated, Attributes: map[string]string{
		"kind": kind,
		"key":  key,
		"bps":  strconv.FormatUint(uint64(bps), 10),
	}}
}
