// ABOUTME: Trigger and action vocabularies: explicitly constructed, passed into the engine at init.
// ABOUTME: The admin UI's select boxes render these listings; engine and UI can never drift.
package engine

import "sort"

// Entry is one vocabulary item: the stored key plus its display label.
type Entry struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Vocabulary is the closed set of trigger events and action types a
// deployment supports. Tests construct a minimal vocabulary instead of the
// full production one; there is no ambient global registry.
type Vocabulary struct {
	triggers map[string]string
	actions  map[string]string
}

// NewVocabulary builds a Vocabulary from key→label maps. The maps are copied.
func NewVocabulary(triggers, actions map[string]string) Vocabulary {
	v := Vocabulary{
		triggers: make(map[string]string, len(triggers)),
		actions:  make(map[string]string, len(actions)),
	}
	for k, l := range triggers {
		v.triggers[k] = l
	}
	for k, l := range actions {
		v.actions[k] = l
	}
	return v
}

// HasTrigger reports whether key is a registered trigger event.
func (v Vocabulary) HasTrigger(key string) bool {
	_, ok := v.triggers[key]
	return ok
}

// HasAction reports whether key is a registered action type.
func (v Vocabulary) HasAction(key string) bool {
	_, ok := v.actions[key]
	return ok
}

// Triggers returns the trigger vocabulary sorted by key.
func (v Vocabulary) Triggers() []Entry { return sortedEntries(v.triggers) }

// Actions returns the action-type vocabulary sorted by key.
func (v Vocabulary) Actions() []Entry { return sortedEntries(v.actions) }

// Operators returns the closed operator set sorted by key.
func Operators() []Entry { return sortedEntries(operatorLabels) }

func sortedEntries(m map[string]string) []Entry {
	out := make([]Entry, 0, len(m))
	for k, l := range m {
		out = append(out, Entry{Key: k, Label: l})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// DefaultVocabulary is the production trigger and action vocabulary of the
// billing back office. Business logic emits these trigger keys; the action
// keys name the handlers main wires into the registry.
func DefaultVocabulary() Vocabulary {
	return NewVocabulary(
		map[string]string{
			"invoice.created":    "Invoice Created",
			"invoice.paid":       "Invoice Paid",
			"invoice.overdue":    "Invoice Overdue",
			"invoice.cancelled":  "Invoice Cancelled",
			"payment.received":   "Payment Received",
			"payment.failed":     "Payment Failed",
			"service.created":    "Service Created",
			"service.activated":  "Service Activated",
			"service.suspended":  "Service Suspended",
			"service.terminated": "Service Terminated",
			"service.renewed":    "Service Renewed",
			"ticket.created":     "Support Ticket Created",
			"ticket.replied":     "Support Ticket Replied",
			"ticket.closed":      "Support Ticket Closed",
			"user.registered":    "User Registered",
			"user.login":         "User Login",
		},
		map[string]string{
			"send_email":        "Send Email",
			"send_sms":          "Send SMS",
			"suspend_service":   "Suspend Service",
			"terminate_service": "Terminate Service",
			"apply_credit":      "Apply Account Credit",
			"create_ticket":     "Create Support Ticket",
			"send_notification": "Send Notification",
			"update_status":     "Update Status",
			"trigger_webhook":   "Trigger Webhook",
			"add_tag":           "Add Tag",
			"remove_tag":        "Remove Tag",
		},
	)
}
