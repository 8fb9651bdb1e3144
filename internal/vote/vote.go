package vote

// Vote is one participant's size estimate. The wire representation is the
// bare name, e.g. "Five".
type Vote string

const (
	Unknown   Vote = "Unknown"
	One       Vote = "One"
	Two       Vote = "Two"
	Three     Vote = "Three"
	Five      Vote = "Five"
	Eight     Vote = "Eight"
	Thirteen  Vote = "Thirteen"
	TwentyOne Vote = "TwentyOne"
	Infinite  Vote = "Infinite"
)

// Hidden stands in for another participant's vote in views produced before
// revelation. It is never stored and never accepted from a client.
const Hidden Vote = "Hidden"

// ranks orders the votes that count toward an outcome. Unknown carries no
// rank and is excluded; Infinite outranks everything.
var ranks = map[Vote]int{
	One:       1,
	Two:       2,
	Three:     3,
	Five:      5,
	Eight:     8,
	Thirteen:  13,
	TwentyOne: 21,
	Infinite:  1 << 30,
}

// Valid reports whether v is part of the castable vocabulary.
func Valid(v Vote) bool {
	if v == Unknown {
		return true
	}
	_, ok := ranks[v]
	return ok
}

// Ranked reports whether v counts toward an outcome.
func (v Vote) Ranked() bool {
	_, ok := ranks[v]
	return ok
}

// Outcome computes the consensus value for a set of cast votes: the highest
// ranked vote cast. A unanimous round therefore yields the unanimous value.
// Unknown votes and absent voters never influence the result; when nothing
// ranked was cast the outcome is Unknown.
func Outcome(votes []Vote) Vote {
	best := Vote("")
	for _, v := range votes {
		if !v.Ranked() {
			continue
		}
		if best == "" || ranks[v] > ranks[best] {
			best = v
		}
	}
	if best == "" {
		return Unknown
	}
	return best
}
