package services

import (
	"sort"
	"strings"

	"auction-marketplace/internal/domain"
)

// RankBids orders bids by amount descending, then by timestamp ascending, so
// the earlier of two equal bids wins. The input slice is not modified.
func RankBids(bids []*domain.Bid) []*domain.Bid {
	ranked := make([]*domain.Bid, len(bids))
	copy(ranked, bids)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if c := a.Amount.Cmp(b.Amount); c != 0 {
			return c > 0
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.ID < b.ID
	})
	return ranked
}

// WinningBid returns the bid that wins the auction, or nil without bids.
func WinningBid(bids []*domain.Bid) *domain.Bid {
	ranked := RankBids(bids)
	if len(ranked) == 0 {
		return nil
	}
	return ranked[0]
}

// MaskBidderID keeps only the first and last character. Ids too short to
// keep anything are fully masked.
func MaskBidderID(id string) string {
	r := []rune(id)
	if len(r) <= 2 {
		return "**"
	}
	return string(r[0]) + strings.Repeat("*", len(r)-2) + string(r[len(r)-1])
}
