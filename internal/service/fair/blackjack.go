package fair

import "math"

// Card format: Rank + Suit (e.g. "As", "Td", "2c").
// Ranks: 2-9, T, J, Q, K, A. Suits: s, h, d, c.

var cardRanks = []string{"2", "3", "4", "5", "6", "7", "8", "9", "T", "J", "Q", "K", "A"}
var cardSuits = []string{"s", "h", "d", "c"}

const (
	blackjackStand      = 17
	blackjackMultiplier = 2.5
	winMultiplier       = 2.0
	pushMultiplier      = 1.0
)

type BlackjackResult struct {
	PlayerHand  []string `json:"playerHand"`
	DealerHand  []string `json:"dealerHand"`
	PlayerTotal int      `json:"playerTotal"`
	DealerTotal int      `json:"dealerTotal"`
	Outcome     string   `json:"outcome"` // blackjack/win/push/lose
	Multiplier  float64  `json:"multiplier"`
	Payout      int64    `json:"payout"`
}

func newDeck() []string {
	deck := make([]string, 0, 52)
	for _, suit := range cardSuits {
		for _, rank := range cardRanks {
			deck = append(deck, rank+suit)
		}
	}
	return deck
}

// ShuffleDeck runs a Fisher-Yates shuffle driven by successive draws,
// one draw (one nonce) per swap.
func ShuffleDeck(secret, clientSeed string, nonce int) []string {
	deck := newDeck()
	for i := len(deck) - 1; i > 0; i-- {
		j := int(Draw(secret, clientSeed, nonce) * float64(i+1))
		deck[i], deck[j] = deck[j], deck[i]
		nonce++
	}
	return deck
}

func cardValue(card string) int {
	switch card[0] {
	case 'T', 'J', 'Q', 'K':
		return 10
	case 'A':
		return 11
	default:
		return int(card[0] - '0')
	}
}

func handTotal(hand []string) int {
	total := 0
	aces := 0
	for _, card := range hand {
		v := cardValue(card)
		if v == 11 {
			aces++
		}
		total += v
	}
	for total > 21 && aces > 0 {
		total -= 10
		aces--
	}
	return total
}

// PlayBlackjack deals from the shuffled sequence in fixed order
// (player, dealer, player, dealer, then hits), both hands drawing to 17.
func PlayBlackjack(secret, clientSeed string, nonce int, amount int64) BlackjackResult {
	deck := ShuffleDeck(secret, clientSeed, nonce)

	next := 0
	pop := func() string {
		card := deck[next]
		next++
		return card
	}

	player := []string{pop()}
	dealer := []string{pop()}
	player = append(player, pop())
	dealer = append(dealer, pop())

	playerNatural := handTotal(player) == 21
	dealerNatural := handTotal(dealer) == 21

	if !playerNatural {
		for handTotal(player) < blackjackStand {
			player = append(player, pop())
		}
	}
	if handTotal(player) <= 21 && !dealerNatural {
		for handTotal(dealer) < blackjackStand {
			dealer = append(dealer, pop())
		}
	}

	playerTotal := handTotal(player)
	dealerTotal := handTotal(dealer)

	outcome := "lose"
	multiplier := 0.0
	switch {
	case playerNatural && dealerNatural:
		outcome, multiplier = "push", pushMultiplier
	case playerNatural:
		outcome, multiplier = "blackjack", blackjackMultiplier
	case playerTotal > 21:
	case dealerNatural:
	case dealerTotal > 21 || playerTotal > dealerTotal:
		outcome, multiplier = "win", winMultiplier
	case playerTotal == dealerTotal:
		outcome, multiplier = "push", pushMultiplier
	}

	return BlackjackResult{
		PlayerHand:  player,
		DealerHand:  dealer,
		PlayerTotal: playerTotal,
		DealerTotal: dealerTotal,
		Outcome:     outcome,
		Multiplier:  multiplier,
		Payout:      int64(math.Floor(float64(amount) * multiplier)),
	}
}
