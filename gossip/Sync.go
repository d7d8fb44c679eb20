/*
File Name:  Sync.go
Author:     Peter Kleissner

Drives the REQUEST_SYNC reconciliation protocol: build an outbound filter over everything this store
holds, and diff an inbound filter against the store to find what the requester is missing.
*/

package gossip

// BuildOutgoingFilter constructs a GCS filter over every packet key this store currently tracks, at the
// Golomb-Rice parameter implied by fpr.
func (s *Store) BuildOutgoingFilter(fpr float64) *Filter {
	keys := s.AllKeys()
	p := PForFPR(fpr)
	return BuildFilter(keys, p)
}

// Missing returns up to cap packet keys this store holds that are absent from incoming, i.e. T \ S.
func (s *Store) Missing(incoming *Filter, cap int) [][16]byte {
	keys := s.AllKeys()
	m := incoming.M()

	var missing [][16]byte
	for _, key := range keys {
		if len(missing) >= cap {
			break
		}
		if !incoming.ContainsMapped(mapKey(key, m)) {
			missing = append(missing, key)
		}
	}
	return missing
}
