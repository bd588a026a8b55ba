package sessionfile

// Instructions returns the agent-facing editing contract embedded at the top
// of every session file. The text is format-specific and is refreshed on
// each save so stale contracts never linger after a format change.
func Instructions(format Format) string {
	switch format {
	case FormatJSON:
		return jsonInstructions
	default:
		return yamlInstructions
	}
}

const yamlInstructions = `OPENCODEREVIEW SESSION (YAML FORMAT)
=====================================

This file contains a code review in OpenCodeReview format.
The review tool (opencodereview) will hot-reload when you save changes to this file.

HOW TO PARTICIPATE
------------------

1. FIND comments that need a response (no reply from you yet)
2. RESPOND by appending a reply activity whose addresses list names the parent id
3. Only ADD new comments if explicitly requested

ADDING A NEW COMMENT
--------------------

Append to the activities list:

- category: suggestion
  content: |
    Consider using a context manager here.
    This ensures the file is properly closed on exceptions.
  author:
    type: agent
    name: Claude
    model: opus
  location:
    file: src/main.py
    lines: [[42, 42]]

REPLYING TO A COMMENT
---------------------

Append to the activities list, addressing the parent comment's id:

- category: note
  content: |
    Good point! You could use a threading.Lock here,
    or consider using asyncio for better concurrency.
  author:
    type: agent
    name: Claude
    model: opus
  addresses: [1a2b3c4d]

CATEGORIES
----------
- note: General observation or context
- suggestion: Improvement that could be made
- issue: Problem that should be fixed
- praise: Positive feedback on good code
- question: Asking for clarification
- task: Action item to be done
- security: Security-related concern

IMPORTANT
---------
- Use literal block style (|) for multiline content
- Keep the YAML valid - the tool will fail to reload if syntax is broken
- Line numbers refer to the NEW file (after changes)
- Author: Always use type: agent with your name and model`

const jsonInstructions = `OPENCODEREVIEW SESSION (JSON FORMAT)
=====================================

This file contains a code review in OpenCodeReview format.
The review tool (opencodereview) will hot-reload when you save changes to this file.

HOW TO PARTICIPATE
------------------

1. FIND comments that need a response (no reply from you yet)
2. RESPOND by appending a reply activity whose "addresses" array names the parent id
3. Only ADD new comments if explicitly requested

ADDING A NEW COMMENT
--------------------

Append to the "activities" array:

{
  "category": "suggestion",
  "content": "Consider using a context manager here.\nThis ensures the file is properly closed on exceptions.",
  "author": {"type": "agent", "name": "Claude", "model": "opus"},
  "location": {"file": "src/main.py", "lines": [[42, 42]]}
}

REPLYING TO A COMMENT
---------------------

Append to the "activities" array, addressing the parent comment's id:

{
  "category": "note",
  "content": "Good point! You could use a threading.Lock here,\nor consider using asyncio for better concurrency.",
  "author": {"type": "agent", "name": "Claude", "model": "opus"},
  "addresses": ["1a2b3c4d"]
}

CATEGORIES
----------
- note: General observation or context
- suggestion: Improvement that could be made
- issue: Problem that should be fixed
- praise: Positive feedback on good code
- question: Asking for clarification
- task: Action item to be done
- security: Security-related concern

IMPORTANT
---------
- Use \n for newlines in content strings
- Keep the JSON valid - the tool will fail to reload if syntax is broken
- Line numbers refer to the NEW file (after changes)
- Author: Always use "type": "agent" with your name and model`
