package conversation

import (
	"strings"
	"time"

	"github.com/wolfman30/wellness-commerce-bot/internal/availability"
)

// Intent is the branch chosen for an inbound message.
type Intent string

const (
	IntentPendingDetail   Intent = "pending_detail"
	IntentAcceptFree      Intent = "accept_free"
	IntentChooseSlot      Intent = "choose_slot"
	IntentTherapyInterest Intent = "therapy_interest"
	IntentPurchaseConsent Intent = "purchase_consent"
	IntentMethodInfo      Intent = "method_info"
	IntentCourseInfo      Intent = "course_info"
	IntentFallback        Intent = "fallback"
)

// Input is what the classifier sees of an inbound message.
type Input struct {
	// Text is the lowercased, trimmed body.
	Text       string
	HasPending bool
	Slot       availability.Slot
	SlotOK     bool
}

// NewInput normalizes a raw body and parses it as a slot in loc.
func NewInput(raw string, hasPending bool, loc *time.Location) Input {
	slot, ok := availability.ParseSlot(raw, loc)
	return Input{
		Text:       strings.ToLower(strings.TrimSpace(raw)),
		HasPending: hasPending,
		Slot:       slot,
		SlotOK:     ok,
	}
}

// Rule maps a predicate to an intent.
type Rule struct {
	Intent Intent
	Match  func(Input) bool
}

// Rules is evaluated top to bottom; the first match wins.
var Rules = []Rule{
	{IntentPendingDetail, func(in Input) bool { return in.HasPending }},
	{IntentAcceptFree, acceptsFreeOffer},
	{IntentChooseSlot, func(in Input) bool { return in.SlotOK }},
	{IntentTherapyInterest, containsAny("consulta", "terapia")},
	{IntentPurchaseConsent, containsAny("comprar", "compro", "adquirir", "pagar")},
	{IntentMethodInfo, containsAny("método", "metodo")},
	{IntentCourseInfo, containsAny("curso")},
}

// Classify returns the intent of the first matching rule, or IntentFallback.
func Classify(in Input) Intent {
	for _, r := range Rules {
		if r.Match(in) {
			return r.Intent
		}
	}
	return IntentFallback
}

func acceptsFreeOffer(in Input) bool {
	return strings.Contains(in.Text, "sí") || in.Text == "si" || strings.Contains(in.Text, "me gustaría")
}

func containsAny(words ...string) func(Input) bool {
	return func(in Input) bool {
		for _, w := range words {
			if strings.Contains(in.Text, w) {
				return true
			}
		}
		return false
	}
}
