package validator

// Economic constants (§6.5). The winner share is overridable via config for
// deployments that want a different split; the fee share is not a separate
// constant, it is the remainder BasisPointsDenom minus the winner share.
const (
	DefaultWinnerShareBP = 9500
	BasisPointsDenom     = 10000

	MinWagerPerPlayer = 1
	MinCombinedWager  = 2
)

// LootAmount computes floor(totalWager * winnerShareBP / 10000).
func LootAmount(totalWager int64, winnerShareBP int64) int64 {
	return totalWager * winnerShareBP / BasisPointsDenom
}

// DrawRefund computes the per-player refund under the draw-refund policy
// (§9 Open Questions): floor(selfWager * winnerShareBP / 10000).
func DrawRefund(selfWager int64, winnerShareBP int64) int64 {
	return selfWager * winnerShareBP / BasisPointsDenom
}
