package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Identity is the authenticated user's profile as returned by the backend.
type Identity struct {
	ID        int    `json:"id" yaml:"id"`
	Username  string `json:"username" yaml:"username"`
	Email     string `json:"email,omitempty" yaml:"email,omitempty"`
	FirstName string `json:"first_name,omitempty" yaml:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty" yaml:"last_name,omitempty"`
}

// Validate reports whether the identity carries the fields that make it usable.
func (i *Identity) Validate() error {
	if i == nil {
		return fmt.Errorf("identity is nil")
	}
	if i.ID <= 0 {
		return fmt.Errorf("identity has no id")
	}
	if i.Username == "" {
		return fmt.Errorf("identity has no username")
	}
	return nil
}

// DisplayName returns "First Last" when set, otherwise the username.
func (i *Identity) DisplayName() string {
	name := strings.TrimSpace(i.FirstName + " " + i.LastName)
	if name == "" {
		return i.Username
	}
	return name
}

// MarshalIdentity serializes an identity for durable storage.
func MarshalIdentity(i *Identity) ([]byte, error) {
	if err := i.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(i)
}

// UnmarshalIdentity parses a stored identity blob.
func UnmarshalIdentity(data []byte) (*Identity, error) {
	var i Identity
	if err := json.Unmarshal(data, &i); err != nil {
		return nil, fmt.Errorf("failed to decode identity: %w", err)
	}
	if err := i.Validate(); err != nil {
		return nil, err
	}
	return &i, nil
}

// ProfileUpdate carries the fields to change with a partial update; nil fields are not sent.
type ProfileUpdate struct {
	Username  *string `json:"username,omitempty"`
	Email     *string `json:"email,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
}

// Empty reports whether no field is set.
func (p ProfileUpdate) Empty() bool {
	return p.Username == nil && p.Email == nil && p.FirstName == nil && p.LastName == nil
}
