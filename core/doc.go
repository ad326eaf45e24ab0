// Package core contains the lead pipeline domain contracts, entities, and
// orchestration logic. Delivery, reference resolution, and storage adapters
// depend on this package; core must not depend on transport-specific or
// storage-specific adapters.
package core
