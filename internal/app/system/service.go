// Package system starts and stops the long-running parts of the
// application in a fixed order.
package system

import "context"

// Service represents a lifecycle-managed component. Components register
// with the Manager so they are started and stopped deterministically.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
