// Package scoring holds the pure appraisal arithmetic shared by evaluations,
// tasks and the composite subject result. Nothing here touches storage.
package scoring

import "math"

// Composite weighting across evaluation types. Fixed policy, not configuration.
const (
	SupervisorWeight = 0.70
	PeerWeight       = 0.15
	SelfWeight       = 0.15
)

// SubmissionFlow selects the rank-to-score scaling applied at submission time.
type SubmissionFlow string

const (
	FlowSelf           SubmissionFlow = "self"
	FlowPeer           SubmissionFlow = "peer"
	FlowPeerBehavioral SubmissionFlow = "peer_behavioral"
)

// Weighted is any scored line item carrying a weight. Score is nil until filled in.
type Weighted interface {
	WeightValue() float64
	ScoreValue() *float64
}

// Entry is the minimal Weighted implementation for callers that only have
// raw weight/score pairs.
type Entry struct {
	Weight float64
	Score  *float64
}

func (e Entry) WeightValue() float64 { return e.Weight }
func (e Entry) ScoreValue() *float64 { return e.Score }

// WeightedAverage computes round(sum(score*weight)/sum(weight)) over entries
// with a non-nil score. Entries without a score do not contribute weight.
// Returns 0 when nothing is scored or when the scored weight sums to zero.
func WeightedAverage[T Weighted](entries []T) int {
	var sum, totalWeight float64
	for _, e := range entries {
		score := e.ScoreValue()
		if score == nil {
			continue
		}
		sum += *score * e.WeightValue() / 100
		totalWeight += e.WeightValue()
	}
	if totalWeight == 0 {
		return 0
	}
	return int(math.Round(sum / totalWeight * 100))
}

// Composite folds per-type scores into the subject-level result using the
// 70/15/15 supervisor/peer/self weighting. Missing components count as zero.
// Output is in [0,100] for inputs in [0,100] and monotonic in each component.
func Composite(selfScore *float64, peerScores, supervisorScores []float64) int {
	var self float64
	if selfScore != nil {
		self = *selfScore
	}
	composite := SupervisorWeight*mean(supervisorScores) + PeerWeight*mean(peerScores) + SelfWeight*self
	return int(math.Round(composite))
}

// RankScore converts a 1..4 rank against a criterion weight into a score at
// submission time. The scaling factor differs per flow: the self flow is
// unscaled, the peer flow applies 0.15 and the behavioral peer flow 0.10.
func RankScore(rank, weight float64, flow SubmissionFlow) float64 {
	base := rank * weight / 4
	switch flow {
	case FlowPeer:
		return base * 0.15
	case FlowPeerBehavioral:
		return base * 0.10
	default:
		return base
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
