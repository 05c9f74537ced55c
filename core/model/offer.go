package model

import "sort"

// Offer is a quantity of medium at a price from a counterparty. Depending on
// the book it lives in it is a consumer request, a neighbour's proposal or a
// reservation made for someone else.
type Offer struct {
	Counterparty ActorRef `json:"counterparty"`
	Amount       float64  `json:"amount"`
	Price        float64  `json:"price"`
	// Provider is only meaningful for consumer requests.
	Provider string `json:"provider,omitempty"`
}

// OfferBook is an ordered list of offers.
type OfferBook []Offer

// Add appends o and returns the new book.
func (b OfferBook) Add(o Offer) OfferBook { return append(b, o) }

// Total sums the amounts.
func (b OfferBook) Total() float64 {
	var sum float64
	for _, o := range b {
		sum += o.Amount
	}
	return sum
}

// ByPrice returns a copy sorted by ascending price. Ties keep their order.
func (b OfferBook) ByPrice() OfferBook {
	out := make(OfferBook, len(b))
	copy(out, b)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out
}

// Reduce lowers the first offer of counterparty by amount. The offer is
// dropped when nothing is left. It reports whether an offer matched.
func (b *OfferBook) Reduce(counterparty ActorRef, amount float64) bool {
	for i, o := range *b {
		if o.Counterparty != counterparty {
			continue
		}
		o.Amount -= amount
		if o.Amount <= 0 {
			*b = append((*b)[:i], (*b)[i+1:]...)
		} else {
			(*b)[i] = o
		}
		return true
	}
	return false
}

// Remove drops every offer of counterparty.
func (b *OfferBook) Remove(counterparty ActorRef) {
	out := (*b)[:0]
	for _, o := range *b {
		if o.Counterparty != counterparty {
			out = append(out, o)
		}
	}
	*b = out
}

// Counterparties returns the distinct counterparties in first-seen order.
func (b OfferBook) Counterparties() []ActorRef {
	seen := make(map[ActorRef]struct{}, len(b))
	var out []ActorRef
	for _, o := range b {
		if _, ok := seen[o.Counterparty]; ok {
			continue
		}
		seen[o.Counterparty] = struct{}{}
		out = append(out, o.Counterparty)
	}
	return out
}
