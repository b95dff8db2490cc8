package valueobjects

// Kind tags the two agent variants. Bots have no capacity ceiling and no
// manual status.
type Kind string

const (
	KindHuman Kind = "human"
	KindBot   Kind = "bot"
)

func (k Kind) IsValid() bool {
	return k == KindHuman || k == KindBot
}
