package domain

import "strings"

// Transition checks are pure functions over a freshly fetched intent.
// Each returns an empty string when the transition is legal, otherwise a
// human-readable reason. Callers wrap the reason in a ValidationError;
// the checks themselves never fail.

// CanUpdate reports whether caller-driven updates are still allowed.
func CanUpdate(i *Intent) string {
	return checkNotTerminal(i)
}

// CanConfirm reports whether the intent is ready to be confirmed.
// Confirmation requires amount, currency and both parties to be present.
func CanConfirm(i *Intent) string {
	if reason := checkNotTerminal(i); reason != "" {
		return reason
	}

	var missing []string
	if i.Amount == 0 {
		missing = append(missing, "amount")
	}
	if i.Currency == "" {
		missing = append(missing, "currency")
	}
	if i.FromParty == "" {
		missing = append(missing, "from_party")
	}
	if i.ToParty == "" {
		missing = append(missing, "to_party")
	}
	if len(missing) > 0 {
		return "Missing required fields: " + strings.Join(missing, ", ")
	}

	return ""
}

// CanCancel reports whether the general-purpose cancel call is allowed.
// Confirmed intents are only ever cancelled through the compensating
// transition driven by a settlement failure, never through this path.
func CanCancel(i *Intent) string {
	return checkNotTerminal(i)
}

// CanDelete reports whether the intent may be hard-deleted. Only cancelled
// intents that were never confirmed qualify; a confirmed (settled) intent is
// kept for its settlement reference.
func CanDelete(i *Intent) string {
	if i.ConfirmedAt != nil {
		return "Intent object is already confirmed"
	}
	if i.CancelledAt == nil {
		return "Only cancelled intents can be deleted"
	}
	return ""
}

func checkNotTerminal(i *Intent) string {
	if i.ConfirmedAt != nil {
		return "Intent object is already confirmed"
	}
	if i.CancelledAt != nil {
		return "Intent object is already cancelled"
	}
	return ""
}
