// Package portal turns flow snapshots and catalogs into page view models and
// renders them with html/template.
//
// The management page follows the flow phase: a subscription summary while
// browsing, the plan grid with its proration preview while selecting, and the
// confirmation step from confirm_pending on. Templates are parsed from any
// fs.FS; Reloader re-parses them from disk when files change.
package portal
