package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MaxCallbackDataLen is the Telegram limit for inline button payloads.
const MaxCallbackDataLen = 64

var ErrInvalidCallback = errors.New("invalid callback payload")

type ModerationVerb string

const (
	ActionActivate ModerationVerb = "activate"
	ActionReject   ModerationVerb = "reject"
)

// ModerationAction is the payload of the approve/reject buttons sent to admins.
type ModerationAction struct {
	Action ModerationVerb `json:"a"`
	Kind   Kind           `json:"k"`
	ID     int64          `json:"id"`
}

func (a ModerationAction) Encode() (string, error) {
	if err := a.validate(); err != nil {
		return "", err
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return "", err
	}
	if len(raw) > MaxCallbackDataLen {
		return "", fmt.Errorf("%w: %d bytes", ErrInvalidCallback, len(raw))
	}
	return string(raw), nil
}

func DecodeModerationAction(data string) (ModerationAction, error) {
	var a ModerationAction
	if err := json.Unmarshal([]byte(data), &a); err != nil {
		return a, fmt.Errorf("%w: %v", ErrInvalidCallback, err)
	}
	return a, a.validate()
}

func (a ModerationAction) validate() error {
	if a.Action != ActionActivate && a.Action != ActionReject {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidCallback, a.Action)
	}
	if a.Kind != KindUser && a.Kind != KindGroup {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidCallback, a.Kind)
	}
	return nil
}

// ConfirmationAnswer is the payload of the Yes/No buttons under a group download prompt.
type ConfirmationAnswer struct {
	Token string `json:"t"`
	Yes   bool   `json:"y"`
}

func (c ConfirmationAnswer) Encode() (string, error) {
	if c.Token == "" {
		return "", fmt.Errorf("%w: empty token", ErrInvalidCallback)
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	if len(raw) > MaxCallbackDataLen {
		return "", fmt.Errorf("%w: %d bytes", ErrInvalidCallback, len(raw))
	}
	return string(raw), nil
}

func DecodeConfirmationAnswer(data string) (ConfirmationAnswer, error) {
	var c ConfirmationAnswer
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return c, fmt.Errorf("%w: %v", ErrInvalidCallback, err)
	}
	if c.Token == "" {
		return c, fmt.Errorf("%w: empty token", ErrInvalidCallback)
	}
	return c, nil
}
