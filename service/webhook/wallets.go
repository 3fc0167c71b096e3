package webhook

// WalletSet is the set of recipient addresses that trigger evaluation.
// Membership is an exact string match.
type WalletSet map[string]struct{}

// NewWalletSet builds a set from addresses, ignoring empty entries.
func NewWalletSet(addresses []string) WalletSet {
	set := make(WalletSet, len(addresses))
	for _, addr := range addresses {
		if addr == "" {
			continue
		}
		set[addr] = struct{}{}
	}
	return set
}

// Contains reports whether address is watched.
func (s WalletSet) Contains(address string) bool {
	_, ok := s[address]
	return ok
}
