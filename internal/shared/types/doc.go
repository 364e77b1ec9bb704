// Package types defines the shared data model of the shell kernel.
//
// These types cross component boundaries: window geometry and snapshots,
// application metadata, the event vocabulary, and session state. Components
// own their mutable collections privately and exchange only these value
// types (or copies) with each other.
package types
