// Package entities holds the shared domain types of the synchronization
// engine: collection types, the filter grammar, sort comparators, state
// tokens and the method-level error taxonomy.
package entities

// CollectionType is a named class of synchronizable objects. Every ledger
// state, change log entry and query is scoped to one (account, collection
// type) pair.
type CollectionType string

const (
	CollectionEmail            CollectionType = "Email"
	CollectionMailbox          CollectionType = "Mailbox"
	CollectionThread           CollectionType = "Thread"
	CollectionIdentity         CollectionType = "Identity"
	CollectionEmailSubmission  CollectionType = "EmailSubmission"
	CollectionPushSubscription CollectionType = "PushSubscription"
)

// AllCollectionTypes lists every synchronizable collection.
var AllCollectionTypes = []CollectionType{
	CollectionEmail,
	CollectionMailbox,
	CollectionThread,
	CollectionIdentity,
	CollectionEmailSubmission,
	CollectionPushSubscription,
}

// ParseCollectionType validates a client-supplied collection name.
func ParseCollectionType(s string) (CollectionType, bool) {
	for _, c := range AllCollectionTypes {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// ChangeOp is the kind of mutation recorded in the change log.
type ChangeOp string

const (
	ChangeOpCreate  ChangeOp = "create"
	ChangeOpUpdate  ChangeOp = "update"
	ChangeOpDestroy ChangeOp = "destroy"
)
