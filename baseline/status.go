package baseline

// Level is the raw "baseline" field of a web-features status record. The
// dataset mixes strings and booleans here, so the loader normalizes boolean
// false to LevelFalse and leaves anything unrecognized as typed.
type Level string

const (
	// LevelHigh means the feature reached Baseline widely available.
	LevelHigh Level = "high"
	// LevelLow means the feature reached Baseline newly available.
	LevelLow Level = "low"
	// LevelFalse means the feature has limited availability.
	LevelFalse Level = "false"
)

// BrowserSupport records availability of a feature in a single browser.
type BrowserSupport struct {
	Supported bool   `json:"supported"`
	Version   string `json:"version,omitempty"`
}

// SupportStatus is the Baseline status of one feature key.
type SupportStatus struct {
	Baseline        Level                     `json:"baseline"`
	BaselineLowDate string                    `json:"baseline_low_date,omitempty"`
	Support         map[string]BrowserSupport `json:"support,omitempty"`
}

// CoreBrowsers is the browser set Baseline availability is judged against.
var CoreBrowsers = []string{"chrome", "edge", "firefox", "safari"}

// Missing names the core browsers st has no support record for. A nil status
// means no data at all, so every core browser is missing.
func Missing(st *SupportStatus) []string {
	var out []string
	for _, b := range CoreBrowsers {
		if st == nil || st.Support == nil {
			out = append(out, b)
			continue
		}
		if _, ok := st.Support[b]; !ok {
			out = append(out, b)
		}
	}
	return out
}

// Classify maps a support status to its adoption tier. It is total: a nil
// status, a false level and any level value it does not recognize all land
// in TierLimited, so callers never need an error path here.
func Classify(st *SupportStatus) Tier {
	if st == nil {
		return TierLimited
	}
	switch st.Baseline {
	case LevelLow:
		return TierNewly
	case LevelHigh:
		return TierWidely
	default:
		return TierLimited
	}
}
