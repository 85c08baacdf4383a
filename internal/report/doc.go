// Package report renders validation runs.
//
// A Report pairs a run with its grouped, filtered messages. Writers render
// reports in three formats:
//   - SimpleWriter: terminal text with colored kind badges and carets under
//     the offending fragment
//   - MarkdownWriter: Markdown for pull request comments and job summaries
//   - JSONWriter: structured JSON for tool integration
//
// Every writer prints NoMessages when the filters leave nothing visible,
// and can include the active filters and source context around each
// message.
package report
