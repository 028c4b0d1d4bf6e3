package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// EmailFilterCondition is the closed set of Email leaf predicates. Decoding
// rejects unknown keys so that unsupported predicates surface structurally
// instead of being silently ignored.
type EmailFilterCondition struct {
	InMailbox          *string   `json:"inMailbox,omitempty"`
	InMailboxOtherThan []string  `json:"inMailboxOtherThan,omitempty"`
	Text               *string   `json:"text,omitempty"`
	Subject            *string   `json:"subject,omitempty"`
	From               *string   `json:"from,omitempty"`
	To                 *string   `json:"to,omitempty"`
	Cc                 *string   `json:"cc,omitempty"`
	Bcc                *string   `json:"bcc,omitempty"`
	After              *time.Time `json:"after,omitempty"`
	Before             *time.Time `json:"before,omitempty"`
	SizeLarger         *int64    `json:"sizeLarger,omitempty"`
	SizeSmaller        *int64    `json:"sizeSmaller,omitempty"`
	HasKeyword         *string   `json:"hasKeyword,omitempty"`
	NotKeyword         *string   `json:"notKeyword,omitempty"`
}

// MailboxFilterCondition is the closed set of Mailbox leaf predicates.
type MailboxFilterCondition struct {
	Name       *string `json:"name,omitempty"`
	Role       *string `json:"role,omitempty"`
	ParentID   *string `json:"parentId,omitempty"`
	HasAnyRole *bool   `json:"hasAnyRole,omitempty"`
}

func DecodeEmailFilterCondition(raw json.RawMessage) (EmailFilterCondition, error) {
	var cond EmailFilterCondition
	if err := decodeStrict(raw, &cond); err != nil {
		return EmailFilterCondition{}, err
	}
	return cond, nil
}

func DecodeMailboxFilterCondition(raw json.RawMessage) (MailboxFilterCondition, error) {
	var cond MailboxFilterCondition
	if err := decodeStrict(raw, &cond); err != nil {
		return MailboxFilterCondition{}, err
	}
	return cond, nil
}

func decodeStrict(raw json.RawMessage, dest interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("decoding filter condition: %w", err)
	}
	return nil
}
