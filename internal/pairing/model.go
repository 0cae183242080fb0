package pairing

import "time"

// Pair binds two physical tokens. It is open until a second, different token
// is scanned and never reverts once complete.
type Pair struct {
	ID          string
	FirstToken  string
	SecondToken string
	CreatedAt   time.Time
	CompletedAt time.Time
}

// IsComplete reports whether both token slots are filled.
func (p Pair) IsComplete() bool {
	return p.SecondToken != ""
}

// Progress renders the pair state the way the scanning device displays it.
func (p Pair) Progress() string {
	if p.IsComplete() {
		return "2/2"
	}
	return "1/2"
}

// Contains reports whether token occupies either slot.
func (p Pair) Contains(token string) bool {
	return token != "" && (p.FirstToken == token || p.SecondToken == token)
}

// ResolutionKind names the outcome of resolving a scanned token.
type ResolutionKind string

const (
	AlreadyComplete ResolutionKind = "already_complete"
	AlreadyOpen     ResolutionKind = "already_open"
	JustCompleted   ResolutionKind = "just_completed"
	JustOpened      ResolutionKind = "just_opened"
)

// Resolution is the pair a token resolved to and how it got there.
type Resolution struct {
	Kind ResolutionKind
	Pair Pair
}

// ScanResult is the shape reported back to a scanning device.
type ScanResult struct {
	PairID        string
	FirstScanned  bool
	SecondScanned bool
	Complete      bool
	Progress      string
	Resolution    ResolutionKind
}

func scanResult(res Resolution) ScanResult {
	return ScanResult{
		PairID:        res.Pair.ID,
		FirstScanned:  res.Pair.FirstToken != "",
		SecondScanned: res.Pair.SecondToken != "",
		Complete:      res.Pair.IsComplete(),
		Progress:      res.Pair.Progress(),
		Resolution:    res.Kind,
	}
}
