package webhook

import "github.com/stretchr/testify/mock"

// MatchWorkItems creates a custom matcher for work item batches in mocks
func MatchWorkItems(matcher func([]*WorkItem) bool) interface{} {
	return mock.MatchedBy(matcher)
}

// MatchSubscription creates a custom matcher for subscription arguments in mocks
func MatchSubscription(matcher func(Subscription) bool) interface{} {
	return mock.MatchedBy(matcher)
}
