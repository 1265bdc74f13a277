// Package workspace manages the on-disk work area for corpus runs.
//
// Manager owns a fixed scratch directory; fetchers keep their clones in a
// persistent subdirectory so repeated fetches reuse them.
//
// Layout carves the persistent work root into tasks/ (one private directory
// per project), logs/ (one sink per task, reset each run), and staging/ (the
// aggregate tree under construction, reset each run).
package workspace
