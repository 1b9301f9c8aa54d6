package mcpserver

// BoardFormatContract describes the board model that LLM consumers should
// follow when editing tiers and pads.
const BoardFormatContract = `# Octopad Board Contract

A board is an ordered list of **tiers**. Each tier is a row of 8 **pad** slots.

## Tier

` + "```" + `json
{
  "id": "tier-1",
  "name": "Work",
  "shareCode": "AB12CD34",
  "position": 1,
  "pads": [ ... ]
}
` + "```" + `

1. **position** is the row index. Positions are always 0..n-1 with no gaps.
2. **name** decides visibility. A tier with an empty name stays on this device only.
   Giving it a name publishes it; clearing the name later does not unpublish it.
3. **shareCode** is 8 characters from 0-9 and A-Z. It never changes for a tier.
   Anyone holding the code can import a copy with ` + "`" + `import_tier` + "`" + `.

## Pad

` + "```" + `json
{
  "id": "p1",
  "name": "Mail",
  "url": "https://mail.example.com",
  "iconUrl": "",
  "position": 0,
  "tierId": "tier-1"
}
` + "```" + `

1. **url** is required. A URL without http:// or https:// gets https:// prepended.
2. **position** is the slot, 0..7. One pad per slot: adding a pad to an occupied
   slot replaces the pad that was there.
3. **id** is generated when omitted.

## Tools

- ` + "`" + `list_tiers` + "`" + ` before editing, to learn tier ids and free slots.
- ` + "`" + `reorder_tiers` + "`" + ` takes a comma-separated id list; unlisted tiers keep
  their relative order after the listed ones.
- ` + "`" + `import_tier` + "`" + ` appends a copy with a new id and a new share code.
`
