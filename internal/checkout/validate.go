package checkout

// validate produces the ordered validation message list for a session. It is
// re-run on every create/update and fully replaces the previous list.
func validate(s *Session) []Message {
	var msgs []Message

	if s.Buyer == nil || s.Buyer.Email == "" {
		msgs = append(msgs, Message{
			Type:     "error",
			Code:     "missing",
			Path:     "$.buyer.email",
			Severity: "recoverable",
			Content:  "Buyer email is required to complete checkout.",
		})
	}

	if !hasSelectedDestination(s.Fulfillment) {
		msgs = append(msgs, Message{
			Type:     "error",
			Code:     "missing",
			Path:     "$.fulfillment.methods[0].selected_destination_id",
			Severity: "recoverable",
			Content:  "A fulfillment destination must be selected.",
		})
	}

	return msgs
}

func hasSelectedDestination(f *Fulfillment) bool {
	if f == nil {
		return false
	}
	for _, m := range f.Methods {
		if m.SelectedDestinationID != "" {
			return true
		}
	}
	return false
}

// statusFor derives the session status from its message list.
func statusFor(msgs []Message) Status {
	if len(msgs) == 0 {
		return StatusReadyForComplete
	}
	return StatusIncomplete
}
