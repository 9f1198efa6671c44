// Package report builds and delivers periodic backlink reports.
//
// A Digest bundles the analysis summary of every domain a subscriber
// monitors. Writers render a Digest in different formats:
//   - MarkdownWriter: the email body, with a category pie chart
//   - SimpleWriter: plain text for terminal display
//   - JSONWriter: structured output for tool integration
//
// Reporter selects a small batch of subscribers that are due, renders their
// digest and hands it to a Mailer. A failure for one subscriber never stops
// the rest of the batch; the next run retries whoever was not marked sent.
package report
