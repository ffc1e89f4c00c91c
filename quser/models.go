// Package quser manages the lazily-created user record that anchors a
// user's existence in the quota domain. It is intentionally thin: this
// core never deletes users and never stores anything beyond identity and
// bookkeeping timestamps.
package quser

import "github.com/mkucukkoc/aiorealbackend/types"

// User is the document stored at users_quota/{id}. Created lazily and
// never deleted by this core.
type User struct {
	types.Entity
	ID    string  `json:"id" firestore:"id"`
	Email *string `json:"email,omitempty" firestore:"email,omitempty"`
}
