// Package resource provides a controller for the memory and bandwidth
// consumed while populating graph storage.
//
// Graph construction is a handful of very large bulk allocations followed by
// a linear copy of every destination and payload value. A Controller lets an
// embedding runtime cap the total bytes reserved by backing arrays and
// arenas, and optionally throttle the bulk copy-in rate so population does
// not monopolize memory bandwidth next to latency-sensitive work.
//
// A nil *Controller is valid everywhere and enforces nothing.
package resource
