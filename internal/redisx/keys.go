package redisx

import "time"

const (
	// Session: session:{session_key} -> user id
	KeySession = "session:%s"

	// Cart per session: hash cart:{session_key} {medicine_id: qty}
	KeyCart = "cart:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// In-flight checkout per session: checkout:{session_key}
	KeyCheckout = "checkout:%s"
)

var (
	TTLSession  = 14 * 24 * time.Hour
	TTLDedup    = 48 * time.Hour
	TTLCheckout = 30 * time.Second
)
