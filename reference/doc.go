// Package reference turns user-supplied document URLs into canonical
// identifiers and fetches the rendered document through an ordered list of
// interchangeable provider APIs.
//
// Each provider call follows pending -> {succeeded | next-provider | failed}.
// A 404 is terminal only when it comes from the last provider.
package reference
