package sqlstore

import "github.com/goliatone/go-leads/core"

var (
	_ core.SubmissionStore         = (*SubmissionStore)(nil)
	_ core.ScopeDirectory          = (*ScopeStore)(nil)
	_ core.DeliveryAttemptRecorder = (*DeliveryAttemptStore)(nil)
	_ core.DeliveryAttemptReader   = (*DeliveryAttemptStore)(nil)
	_ core.StoreProvider           = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory  = (*RepositoryFactory)(nil)
)
