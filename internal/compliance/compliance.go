// Package compliance turns one frame's detections into PPE compliance metrics.
package compliance

import (
	"math"

	"github.com/tphakala/ppe-go/internal/detection"
)

// State is the status chip shown for a frame.
type State string

const (
	StateCompliant State = "compliant"
	StateRisk      State = "risk"
)

// Role is a semantic class looked up by name, with a fixed class ID used
// when the vocabulary has no entry of that name.
type Role struct {
	Name      string
	DefaultID int
}

// Default IDs follow the eight-class vocabulary and are wrong for models
// with a different class order that also lack the role's name.
var (
	RoleGloves    = Role{detection.ClassGloves, 0}
	RoleHardhat   = Role{detection.ClassHardhat, 1}
	RoleNoGloves  = Role{detection.ClassNoGloves, 2}
	RoleNoHardhat = Role{detection.ClassNoHardhat, 3}
	RoleNoVest    = Role{detection.ClassNoVest, 4}
	RolePerson    = Role{detection.ClassPerson, 5}
	RoleShoes     = Role{detection.ClassShoes, 6}
	RoleVest      = Role{detection.ClassVest, 7}
)

// Snapshot holds the metrics derived from a single frame.
type Snapshot struct {
	PerClassCounts map[int]int `json:"per_class_counts"`

	WorkerCount int `json:"worker_count"`
	Gloves      int `json:"gloves"`
	Hardhats    int `json:"hardhats"`
	Vests       int `json:"vests"`
	Shoes       int `json:"shoes"`
	NoGloves    int `json:"no_gloves"`
	NoHardhats  int `json:"no_hardhats"`
	NoVests     int `json:"no_vests"`

	NonComplianceFlags int   `json:"non_compliance_flags"`
	CompliantSignals   int   `json:"compliant_signals"`
	ComplianceScore    int   `json:"compliance_score"`
	State              State `json:"state"`
}

// Aggregate computes a Snapshot. It is a pure function of its inputs; an
// empty detection list gives zero counts and a score of 100.
func Aggregate(dets []detection.Detection, vocab detection.Vocabulary) Snapshot {
	counts := make(map[int]int, len(dets))
	for _, d := range dets {
		counts[d.ClassID]++
	}

	count := func(r Role) int {
		ids := vocab.IDsFor(r.Name)
		if len(ids) == 0 {
			ids = []int{r.DefaultID}
		}
		total := 0
		for _, id := range ids {
			total += counts[id]
		}
		return total
	}

	s := Snapshot{
		PerClassCounts: counts,
		WorkerCount:    count(RolePerson),
		Gloves:         count(RoleGloves),
		Hardhats:       count(RoleHardhat),
		Vests:          count(RoleVest),
		Shoes:          count(RoleShoes),
		NoGloves:       count(RoleNoGloves),
		NoHardhats:     count(RoleNoHardhat),
		NoVests:        count(RoleNoVest),
	}
	s.NonComplianceFlags = s.NoHardhats + s.NoVests + s.NoGloves
	s.CompliantSignals = s.Gloves + s.Hardhats + s.Vests + s.Shoes
	s.ComplianceScore = score(s.WorkerCount, s.CompliantSignals, s.NonComplianceFlags)

	s.State = StateCompliant
	if s.NonComplianceFlags > 0 {
		s.State = StateRisk
	}
	return s
}

// score is 100 when no workers are visible, regardless of PPE items.
func score(workers, compliant, risk int) int {
	if workers == 0 {
		return 100
	}
	denom := max(1, compliant+risk)
	v := int(math.Round(100 * float64(compliant) / float64(denom)))
	return min(100, max(0, v))
}

// TotalDetections returns the number of detections the snapshot was built from.
func (s Snapshot) TotalDetections() int {
	total := 0
	for _, n := range s.PerClassCounts {
		total += n
	}
	return total
}
