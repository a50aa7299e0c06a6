// Package models defines the domain records the client fetches from the
// API and patches from realtime events.
//
// # Records
//
//   - Group: a named collection of members sharing expenses and a chat stream
//   - Member: a group participant (immutable once fetched)
//   - Expense: an amount paid by one member and split among several
//   - ChatMessage: one entry of the group chat
//   - Invite: a pending, unaccepted membership request by email
//   - User: the authenticated account
//
// # Design Principles
//
// 1. **Snapshots, not state**: a Group is replaced wholesale on every fetch
// 2. **IDs for relationships**: expenses reference members through MemberRef
// 3. **Exact money**: amounts are decimals with two fraction digits
package models
