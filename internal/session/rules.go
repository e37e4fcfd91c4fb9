package session

import "github.com/desertthunder/snipx/internal/services"

// MessageRule picks a display message from a normalized error payload.
type MessageRule func(p *services.ErrorPayload) (string, bool)

// FieldRule returns the first message of the first listed field that has one.
func FieldRule(fields ...string) MessageRule {
	return func(p *services.ErrorPayload) (string, bool) {
		for _, field := range fields {
			if msg, ok := p.Field(field); ok {
				return msg, true
			}
		}
		return "", false
	}
}

// AnyFieldRule returns the first message of any field, in field name order.
func AnyFieldRule(p *services.ErrorPayload) (string, bool) {
	return FieldRule(p.FieldNames()...)(p)
}

// ErrorRule uses the "error" key.
func ErrorRule(p *services.ErrorPayload) (string, bool) {
	return p.Error, p.Error != ""
}

// DetailRule uses the "detail" key.
func DetailRule(p *services.ErrorPayload) (string, bool) {
	return p.Detail, p.Detail != ""
}

// Rule sets, tried in order: field-level validation, then generic error and detail keys.
var (
	LoginRules = []MessageRule{
		FieldRule("username", "password", "non_field_errors"),
		AnyFieldRule,
		ErrorRule,
		DetailRule,
	}
	RegisterRules = []MessageRule{
		FieldRule("username", "password", "email", "non_field_errors"),
		AnyFieldRule,
		ErrorRule,
		DetailRule,
	}
	ProfileRules = []MessageRule{
		FieldRule("username", "email", "first_name", "last_name", "non_field_errors"),
		AnyFieldRule,
		ErrorRule,
		DetailRule,
	}
)

// Fallback messages when no rule matches or the request never reached the server.
const (
	LoginFailed    = "Login failed"
	RegisterFailed = "Registration failed"
	ProfileFailed  = "Profile update failed"
	LogoutFailed   = "Logout failed"
	StorageFailed  = "Could not save session"
	NotLoggedIn    = "Not logged in"
	NothingToSave  = "Nothing to update"
	NotYourProfile = "Only your own profile can be updated"
	Superseded     = "Superseded by a newer request"
)

// ExtractMessage applies rules to err's payload and falls back when none match.
//
// Errors that are not backend responses (network failures, decoding errors) always
// yield the fallback, never their own text.
func ExtractMessage(err error, rules []MessageRule, fallback string) string {
	apiErr, ok := services.AsAPIError(err)
	if !ok || apiErr.Payload == nil {
		return fallback
	}
	for _, rule := range rules {
		if msg, ok := rule(apiErr.Payload); ok {
			return msg
		}
	}
	return fallback
}
