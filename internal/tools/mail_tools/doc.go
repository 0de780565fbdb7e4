// Package mail_tools implements the MCP tools for reading unread email and
// authoring reply drafts.
//
// Two tools are exposed: list_unread_emails returns unread messages as short
// summaries, and draft_reply generates a reply to one of them and saves it
// to the drafts folder without sending. Failures are reported as a uniform
// JSON envelope carrying an error kind and message.
package mail_tools
