// Package authmanager provides a storage-agnostic identity, group and
// role model for applications that need local accounts.
//
// Identity storage:
//   - Users are keyed by a UUID and indexed by unique username and email.
//     Credentials are bcrypt hashes that never leave the Backend through a
//     read path; User carries no password field at all.
//   - Backend implementations live in storage/memory and storage/relational.
//     Both honor the same contract, including RunInTx atomicity.
//
// Groups and roles:
//   - Every group owns a membership set and, per member, an ordered role list.
//     Grants and revokes are set operations so concurrent updates commute.
//   - Newly created users are added to the default group by an explicit
//     PostCreateHook that runs in the creating transaction.
//
// Lifecycle:
//   - AccountStateMachine gates activate, deactivate and delete. Deleting an
//     account removes the record and its memberships from the Backend.
//
// Authorization:
//   - Gate answers "does identity X hold role R in scope Y" by reading the
//     current role map on every call.
package authmanager
