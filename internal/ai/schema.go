package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrNoJSON means the response text held no {...} span.
	ErrNoJSON = errors.New("response did not include JSON")
	// ErrInvalidResponse means the JSON did not parse or failed validation.
	ErrInvalidResponse = errors.New("response failed validation")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Pointer fields let "required" tell a missing key from a zero value.
type decisionPayload struct {
	MarketID   *string  `json:"marketId" validate:"required"`
	Action     *string  `json:"action" validate:"required,oneof=BUY SELL HOLD"`
	SizePct    *float64 `json:"sizePct" validate:"required,gte=0,lte=0.1"`
	Confidence *float64 `json:"confidence" validate:"required,gte=0,lte=1"`
	Reason     *string  `json:"reason" validate:"required"`
}

type decisionSetPayload struct {
	Reasoning        *string           `json:"reasoning" validate:"required"`
	Decisions        []decisionPayload `json:"decisions" validate:"required,dive"`
	MarketCommentary *string           `json:"marketCommentary" validate:"required"`
}

type replyPayload struct {
	Reply *string `json:"reply" validate:"required"`
}

// ExtractJSON returns the text between the first '{' and the last '}'.
func ExtractJSON(raw string) (string, bool) {
	first := strings.Index(raw, "{")
	last := strings.LastIndex(raw, "}")
	if first == -1 || last == -1 || last <= first {
		return "", false
	}
	return raw[first : last+1], true
}

// ParseDecisionSet extracts and strictly validates a decision set. Values outside their
// declared range are rejected, never clamped.
func ParseDecisionSet(raw string) (*DecisionSet, error) {
	var p decisionSetPayload
	if err := decodeStrict(raw, &p); err != nil {
		return nil, err
	}

	set := &DecisionSet{
		Reasoning:        *p.Reasoning,
		MarketCommentary: *p.MarketCommentary,
		Decisions:        make([]Decision, 0, len(p.Decisions)),
	}
	for _, d := range p.Decisions {
		set.Decisions = append(set.Decisions, Decision{
			MarketID:   *d.MarketID,
			Action:     Action(*d.Action),
			SizePct:    *d.SizePct,
			Confidence: *d.Confidence,
			Reason:     *d.Reason,
		})
	}
	return set, nil
}

// ParseReply extracts and validates a {"reply": "..."} answer.
func ParseReply(raw string) (string, error) {
	var p replyPayload
	if err := decodeStrict(raw, &p); err != nil {
		return "", err
	}
	return *p.Reply, nil
}

func decodeStrict(raw string, dst interface{}) error {
	payload, ok := ExtractJSON(raw)
	if !ok {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(payload), dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}
