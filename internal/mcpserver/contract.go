package mcpserver

import "github.com/starford/mdchat/internal/transcript"

// ConversationFormatURI identifies the conversation format resource.
const ConversationFormatURI = "mdchat://conversation-format"

// ConversationFormat describes how mdchat lays out its tree and stores
// conversations, for LLM consumers editing nodes directly.
const ConversationFormat = `# mdchat Conversation Format

mdchat stores chats as Markdown documents in a virtual tree of files and
folders.

## Paths

- Paths are absolute and use forward slashes: ` + "`/chats/001-weekly-sync.md`" + `.
- The root folder is ` + "`/`" + `.
- Creating a node creates its missing parent folders.
- The name ` + "`readme.md`" + ` is reserved: it holds the document of its folder.
- Conversation files are named ` + "`NNN-slug.md`" + `, a three digit number and a
  lowercase slug of the title.

## Metadata

Markdown files and folders may start with a YAML front-matter block:

` + "```" + `markdown
---
title: Weekly sync
model: gpt-4o
usage:
  inputTokens: 1200
  outputTokens: 340
---
` + "```" + `

Use ` + "`write_metadata`" + ` to change it; ` + "`write_content`" + ` keeps the
existing block. Other files carry no metadata.

## Conversations

A conversation is a sequence of message blocks separated by blank lines:

` + "```" + `markdown
` + transcript.Delimiter + `
role: user
---
What is the capital of France?

` + transcript.Delimiter + `
role: assistant
---
<think>
The user asks a geography question.
</think>
Paris.
***tool***
` + "```" + "json" + `
{
  "type": "tool-search",
  "toolCallId": "call_1",
  "state": "output-available"
}
` + "```" + `
` + "```" + `

- The role line is one of ` + "`user`" + `, ` + "`assistant`" + ` or ` + "`system`" + `.
- ` + "`<think>`" + ` blocks hold reasoning.
- ` + "`***tool***`" + ` followed by a fenced JSON object holds a tool call.
- Everything else is message text.

## Folder summaries

Each folder document is regenerated after metadata or message writes. It lists
the files of the folder with their titles and a short digest, then the
subfolders. Do not edit it by hand.
`
