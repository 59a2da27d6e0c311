// Package baseline defines the web-platform adoption model shared by the
// scanner, the dataset index and the reporting layer: support tiers, raw
// Baseline status records and the classification rule between them.
package baseline

import "fmt"

// Tier is the adoption tier assigned to a web feature. Order matters:
// a numerically smaller tier means narrower browser support.
type Tier int

const (
	// TierLimited marks features not yet interoperable across core browsers.
	TierLimited Tier = iota
	// TierNewly marks features recently available in all core browsers.
	TierNewly
	// TierWidely marks features interoperable long enough to rely on.
	TierWidely
)

const tierNames = "limitednewlywidely"

var tierIndex = [...]int{0, 7, 12, 18}

func (t Tier) String() string {
	if t < TierLimited || t > TierWidely {
		return fmt.Sprintf("Tier(%d)", int(t))
	}
	return tierNames[tierIndex[t]:tierIndex[t+1]]
}

// ParseTier converts a tier name back to its value.
func ParseTier(name string) (Tier, error) {
	for t := TierLimited; t <= TierWidely; t++ {
		if name == t.String() {
			return t, nil
		}
	}
	return TierLimited, fmt.Errorf("%s is not a valid Tier", name)
}

// MarshalText implements encoding.TextMarshaler so tiers read naturally in
// yaml and json documents.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(text []byte) error {
	v, err := ParseTier(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Tiers lists all tiers in ascending adoption order.
func Tiers() []Tier {
	return []Tier{TierLimited, TierNewly, TierWidely}
}
