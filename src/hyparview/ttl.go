package hyparview

// TimeToLive is the hop budget of a random walk. It decreases by one each
// time a ForwardJoin or Shuffle message is relayed; when it reaches zero the
// message is handled terminally by whichever node holds it.
type TimeToLive uint8

// Expired reports whether the walk has run out of hops.
func (t TimeToLive) Expired() bool {
	return t == 0
}

// Decrement returns the TTL reduced by one hop, saturating at zero.
func (t TimeToLive) Decrement() TimeToLive {
	if t == 0 {
		return 0
	}
	return t - 1
}
