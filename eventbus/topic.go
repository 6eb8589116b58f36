package eventbus

import "strings"

// Wildcard matches every topic.
const Wildcard = "*"

// MatchesTopic reports whether an event topic matches a subscription topic.
// Besides exact matches it supports "*" for every topic and a trailing "*"
// for prefix patterns, e.g. "order.*" matches "order.submitted".
func MatchesTopic(eventTopic, subscriptionTopic string) bool {
	if eventTopic == subscriptionTopic || subscriptionTopic == Wildcard {
		return true
	}

	if len(subscriptionTopic) > 1 && strings.HasSuffix(subscriptionTopic, Wildcard) {
		return strings.HasPrefix(eventTopic, strings.TrimSuffix(subscriptionTopic, Wildcard))
	}

	return false
}
