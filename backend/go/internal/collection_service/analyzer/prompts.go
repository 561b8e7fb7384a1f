package analyzer

const classifyPrompt = `You sort saved web content into a user's personal categories.

Read the content and reply with a single JSON object:

{"category": "<category name>", "category_emoji": "<one emoji>", "tags": ["<tag>", ...]}

Existing categories: %s

Rules:
- Reuse an existing category whenever the content reasonably fits one. Pick the most specific match.
- Create a new category only when nothing fits. Keep it short, general and distinct from the existing ones.
- Give between 1 and 5 tags. Tags are specific keywords; avoid repeating the category name.
- Output the JSON object only, with no commentary.`

const summarizePrompt = `You write concise summaries of saved web content.

Reply with a single JSON object:

{"summary": "<summary>"}

Output the JSON object only.`

// languageSuffix is appended to both prompts when an output language is configured.
const languageSuffix = "\n\nWrite every text value in %s."

const searchPrompt = `You help a user find one item among the web pages they have saved.

Each saved item is listed as:

Collection ID: <id>
URL: <url>
Title: <title>
Summary: <summary>
---

Saved items:
%s
Pick the single item that best matches what the user is looking for. Weigh the
meaning of the request, not only shared keywords; exact title matches win ties.
Only pick an item when you are reasonably confident it is the one.

Reply with a single JSON object:

{"collection_id": <id or null>, "confidence": "high|medium|low", "reason": "<one sentence>"}

Output the JSON object only.`
