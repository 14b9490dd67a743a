// Package render turns session snapshots into terminal lines.
//
// Message bodies and names come from other users, so markup is stripped with
// a bluemonday strict policy and control characters are dropped before
// anything reaches the terminal.
//
// A Renderer is stateful: Update returns only what changed since the previous
// snapshot, so a front-end can print every snapshot it receives.
package render
