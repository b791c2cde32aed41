package routing

// CompactionInterval is the ledger size step at which history is compacted.
const CompactionInterval = 10

// CompactionCheck is the ledger snapshot taken when an Entry step starts.
type CompactionCheck struct {
	ActiveCount   int
	Head          int64
	LastFiredHead int64
}

// Due fires on every multiple of CompactionInterval, once per ledger head.
func (c CompactionCheck) Due() bool {
	if c.ActiveCount < CompactionInterval || c.ActiveCount%CompactionInterval != 0 {
		return false
	}
	return c.Head == 0 || c.Head != c.LastFiredHead
}
