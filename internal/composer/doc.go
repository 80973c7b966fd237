// Package composer fills DOCX templates with structured data and stitches
// merged documents together.
//
// Merge rewrites the tag markup found in the main document part, headers, and
// footers. Tags are brace-delimited:
//
//	{name}            field, dotted paths walk nested objects
//	{.}               current loop element
//	{#name}...{/name} loop over a list, or render once when name is truthy
//	{^name}...{/name} render when name is falsy or an empty list
//
// A block whose opening and closing tags sit alone in their own paragraphs
// repeats the paragraphs between them. A block that opens in one table cell
// and closes in another repeats the table rows it spans. Anything else is an
// inline block repeated inside one paragraph.
//
// Concat joins several merged documents into the container of the first one,
// separating them with next-page section breaks and carrying over the images
// and hyperlinks each later document references.
package composer
