package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[SubmitLeadMessage]   = (*SubmitLeadCommand)(nil)
	_ gocmd.Commander[DispatchTestMessage] = (*DispatchTestCommand)(nil)
)
