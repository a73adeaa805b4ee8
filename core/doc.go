// Package core contains the bank feed domain contracts, entities, and the
// sync orchestration. Provider adapters, stores and transports depend on this
// package; core must not depend on provider-specific or storage-specific
// code.
package core
