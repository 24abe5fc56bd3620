package risk

// Segment is one entry in the ordered client classification list. Segments
// are evaluated top-down and the first matching predicate wins, so the order
// of the list is part of the contract: reordering predicates changes
// classification outcomes.
type Segment struct {
	Name     string
	Priority int
	Matches  func(*RiskProfile) bool
}

// Segment names. The list mixes a value axis (VIP, Loyal) with a risk axis
// (Attention, Risk, Critical); that mix is intentional and preserved.
const (
	SegmentVIP       = "VIP"
	SegmentLoyal     = "Loyal"
	SegmentPromising = "Promising"
	SegmentAttention = "Attention"
	SegmentRisk      = "Risk"
	SegmentCritical  = "Critical"
)

// DefaultSegments returns the standard ordered segment list. The final entry
// is a catch-all so no profile can match zero segments.
func DefaultSegments() []Segment {
	return []Segment{
		{Name: SegmentVIP, Priority: 1, Matches: func(p *RiskProfile) bool {
			return p.Factors.Value >= 80 && p.Factors.Reliability >= 70
		}},
		{Name: SegmentLoyal, Priority: 2, Matches: func(p *RiskProfile) bool {
			return p.Factors.Loyalty >= 70 && p.Factors.Reliability >= 60
		}},
		{Name: SegmentPromising, Priority: 3, Matches: func(p *RiskProfile) bool {
			return p.Score < 40
		}},
		{Name: SegmentAttention, Priority: 4, Matches: func(p *RiskProfile) bool {
			return p.Score < 60
		}},
		{Name: SegmentRisk, Priority: 5, Matches: func(p *RiskProfile) bool {
			return p.Score < 80
		}},
		// Catch-all: only scores >= 80 reach this point.
		{Name: SegmentCritical, Priority: 6, Matches: func(*RiskProfile) bool {
			return true
		}},
	}
}

// Classify walks the ordered segment list and returns the first match.
func Classify(p *RiskProfile, segments []Segment) Segment {
	if len(segments) == 0 {
		segments = DefaultSegments()
	}
	for _, seg := range segments {
		if seg.Matches(p) {
			return seg
		}
	}
	// The default list ends in a catch-all; a custom list without one falls
	// back to the last entry rather than returning nothing.
	return segments[len(segments)-1]
}
