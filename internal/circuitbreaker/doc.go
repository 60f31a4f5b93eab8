// Package circuitbreaker implements the state machine that decides when
// the primary cluster is bypassed in favor of the backup.
//
//   - CLOSED: normal operation, calls go to primary
//   - OPEN: primary failed recently, calls are served by backup
//   - HALF-OPEN: cooldown elapsed, one probe call is tried against primary
//
// Usage:
//
//	b := circuitbreaker.New(1, 30*time.Second)
//	if b.Allow() {
//	    // Call primary...
//	    if transient(err) {
//	        b.RecordFailure()
//	    } else {
//	        b.RecordSuccess()
//	    }
//	}
package circuitbreaker
