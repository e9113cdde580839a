// Package store keeps the latest channel snapshot of every backend and
// publishes updates to subscribers.
//
// This package is internal to channelboard. It implements a
// publish-subscribe pattern for real-time updates to connected consoles.
//
// The main components are:
//
//   - [Store]: interface defining storage and subscription operations
//   - [MemoryStore]: in-memory implementation of Store with pub/sub
//   - [Snapshot]: storage representation of one backend's channel list
//   - [Channel]: one channel row, shaped for JSON and the console table
//
// The store is designed for concurrent access. Subscribers receive updates
// via channels with non-blocking sends (slow subscribers miss updates
// rather than block the system).
//
// Users of the channelboard library should not need to interact with this
// package directly.
package store
