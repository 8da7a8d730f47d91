// Command quill is the command-line interface for the Quill content workflow
// daemon.
//
// It starts and stops the daemon, creates workflows, drives the human steps
// (outline approval, revisions, SEO finalization), chats about a draft, and
// follows a workflow's progress over the daemon's event stream.
package main
