// Package resilience holds the fault tolerance pieces used around delivery
// channels and the ledger database.
//
//   - circuitbreaker: gobreaker wrappers, one breaker per channel plus one for
//     the database
//   - retry: exponential backoff with jitter and Retry-After support
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.DefaultConfig("telegram"))
//	_, err := cb.Execute(func() (interface{}, error) {
//	    return nil, send(ctx)
//	})
//
//	err = retry.WithBackoff(ctx, retry.DBConfig(), func() error {
//	    return commit(ctx)
//	})
package resilience
