package signal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Signal type tags understood by the scorers.
const (
	TypeSearchVelocity   = "search_velocity"
	TypeBreakout         = "breakout"
	TypeRising           = "rising"
	TypeTikTokPopularity = "tiktok_popularity"
	TypeUpvoteVelocity   = "upvote_velocity"
	TypeBSRMomentum      = "bsr_momentum"
	TypeSentiment        = "sentiment"
)

// ErrInvalidEvent is matched by every validation or decode failure.
var ErrInvalidEvent = errors.New("invalid event")

// InvalidEventError carries a short reason usable as a metric label.
type InvalidEventError struct {
	Reason string
	Detail string
}

func (e *InvalidEventError) Error() string {
	if e.Detail == "" {
		return "invalid event: " + e.Reason
	}
	return "invalid event: " + e.Reason + ": " + e.Detail
}

func (e *InvalidEventError) Unwrap() error { return ErrInvalidEvent }

// Event is the uniform record every collector emits.
type Event struct {
	Source         string         `json:"source" validate:"required,max=50"`
	SignalType     string         `json:"signal_type" validate:"required,max=50"`
	RawProductName string         `json:"raw_product_name" validate:"max=2000"`
	Value          float64        `json:"value" validate:"finite"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CollectedAt    time.Time      `json:"collected_at"`
	Price          *float64       `json:"price,omitempty" validate:"omitempty,finite,gte=0"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	})
	return v
}

// Validate lower-cases the tag fields and checks the event.
func (e *Event) Validate() error {
	e.Source = strings.ToLower(strings.TrimSpace(e.Source))
	e.SignalType = strings.ToLower(strings.TrimSpace(e.SignalType))
	if err := validate.Struct(e); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &InvalidEventError{Reason: verrs[0].Field() + "_" + verrs[0].Tag()}
		}
		return &InvalidEventError{Reason: "validation", Detail: err.Error()}
	}
	return nil
}

// Reason returns the drop reason for err, or "error" for anything else.
func Reason(err error) string {
	var ie *InvalidEventError
	if errors.As(err, &ie) {
		return ie.Reason
	}
	return "error"
}

// DecodeEvents accepts a single JSON object or an array of objects. Elements that
// fail to decode are reported individually so one bad event does not sink the batch.
func DecodeEvents(data []byte) ([]Event, []error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] != '[' {
		var ev Event
		if err := json.Unmarshal(trimmed, &ev); err != nil {
			return nil, []error{&InvalidEventError{Reason: "decode", Detail: err.Error()}}
		}
		return []Event{ev}, nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(trimmed, &raws); err != nil {
		return nil, []error{&InvalidEventError{Reason: "decode", Detail: err.Error()}}
	}
	events := make([]Event, 0, len(raws))
	var errs []error
	for idx, raw := range raws {
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			errs = append(errs, &InvalidEventError{Reason: "decode", Detail: fmt.Sprintf("element %d: %v", idx, err)})
			continue
		}
		events = append(events, ev)
	}
	return events, errs
}

// MetadataString returns the first non-empty string value among keys.
func (e Event) MetadataString(keys ...string) string {
	for _, k := range keys {
		if v, ok := e.Metadata[k].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
