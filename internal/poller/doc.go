// Package poller refreshes the channel lists of engine backends on a
// schedule.
//
// This package is internal to channelboard. It implements a worker pool
// that fetches every backend immediately on start, then at each backend's
// interval, with a configurable concurrency limit. The console's refresh
// button goes through [Scheduler.Refresh].
//
// The main components are:
//
//   - [Scheduler]: periodic refresh with a worker pool
//   - [Fetcher]: the backend call, implemented by *oie.Client
//   - [BackendInfo]: configuration of one backend
//   - [Result]: outcome of one refresh
//
// Users of the channelboard library should not need to interact with this
// package directly. Configuration is done through the main channelboard package.
package poller
