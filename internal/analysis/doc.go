// Package analysis derives the metrics shown in reports and the link API
// from the link index and the scan history.
//
// Every function here is pure: callers load the data and pass the clock.
package analysis
